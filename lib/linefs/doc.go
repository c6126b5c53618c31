// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package linefs serves the lines of one file as a flat directory of
// read-only files named "1", "2", ... "N".
//
// An [Engine] pairs a line index (see lineindex) with a positional
// reader over the source it was built from. It answers the four
// requests a filesystem bridge needs:
//
//   - [Engine.Attributes] -- directory metadata for the root, regular
//     file metadata (size = line length) for a line
//   - [Engine.ListDirectory] -- ".", "..", then every line name in
//     ascending numeric order
//   - [Engine.Open] -- succeeds only for existing paths opened
//     read-only
//   - [Engine.Read] -- bytes of one line starting at an offset, clipped
//     so a read never extends into the next line
//
// Paths are "/" or "" for the root and "/N" or "N" for line N. Only
// the canonical decimal spelling names a line: "007", "+7", and "7/"
// are not found. Resolution is arithmetic, not a scan.
//
// Failures are reported as *fs.PathError values wrapping one of the
// package's sentinel errors ([ErrNotFound], [ErrAccessDenied],
// [ErrNotDirectory], [ErrIsDirectory], [ErrInvalidOffset], [ErrIO]);
// classify them with errors.Is. Reading at or beyond the end of a line
// is not a failure: it returns zero bytes.
//
// The Engine holds no mutable state. Every method is safe to call from
// any number of goroutines, provided the source's ReadAt is (pread and
// memory maps both are).
//
// [Engine.FS] adapts the engine to io/fs so Go code can walk the line
// directory without a kernel mount.
package linefs
