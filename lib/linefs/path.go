// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linefs

import (
	"strconv"
	"strings"
)

// maxNameLength is the length of the largest uint64 in decimal.
const maxNameLength = 20

// Target is a resolved path: either the root directory or one line.
// The zero value is the root.
type Target struct {
	// number is the 1-based line number, 0 for the root.
	number int
}

// IsRoot reports whether t is the root directory.
func (t Target) IsRoot() bool { return t.number == 0 }

// Number returns the 1-based line number, or 0 for the root.
func (t Target) Number() int { return t.number }

// Position returns the 0-based index position, or -1 for the root.
func (t Target) Position() int { return t.number - 1 }

// Name returns the entry's file name, "" for the root.
func (t Target) Name() string {
	if t.IsRoot() {
		return ""
	}
	return strconv.Itoa(t.number)
}

// Resolve maps a path to its target. One leading slash is accepted.
// The empty remainder is the root; anything else must be the canonical
// decimal spelling of a line number between 1 and Len.
func (e *Engine) Resolve(path string) (Target, error) {
	name := strings.TrimPrefix(path, "/")
	if name == "" {
		return Target{}, nil
	}
	return e.Lookup(name)
}

// Lookup resolves a single directory entry name. Unlike Resolve it
// never returns the root.
func (e *Engine) Lookup(name string) (Target, error) {
	number, ok := ParseLineNumber(name)
	if !ok || number > uint64(e.index.Len()) {
		return Target{}, ErrNotFound
	}
	return Target{number: int(number)}, nil
}

// ParseLineNumber parses a canonical line name: one or more ASCII
// digits, no sign, no leading zero, value at least 1. Zero, which no
// line is named, is rejected along with everything malformed.
func ParseLineNumber(name string) (uint64, bool) {
	if name == "" || len(name) > maxNameLength || name[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
	}
	number, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}
