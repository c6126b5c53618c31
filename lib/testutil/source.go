// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteSource writes content to a file named name in a fresh temporary
// directory and returns the file's path. The directory is removed when
// the test completes.
func WriteSource(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing source %s: %v", path, err)
	}
	return path
}

// NumberedLines returns count newline-terminated lines. Line i (from
// 1) is "i:" followed by i%width copies of 'x', so lengths vary and no
// two lines are equal.
func NumberedLines(count, width int) string {
	var builder strings.Builder
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&builder, "%d:%s\n", i, strings.Repeat("x", i%width))
	}
	return builder.String()
}
