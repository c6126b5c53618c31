// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lineindex builds the table of line boundaries that linefs
// serves files from.
//
// [Build] reads a source once, front to back, and records for every
// line its byte offset and byte length. The result is an [Index]: an
// immutable, ordered slice of [Record] values plus a BLAKE3 digest of
// the bytes the records cover. Position i in the index is line i+1.
//
// # Line boundaries
//
// A line ends after a '\n' byte, and its length includes that byte. A
// final line with no terminator ends at end of input. Every other byte
// value, including '\r' and NUL, is line content. An empty input has
// no lines. Records are contiguous: each starts where the previous one
// ended, so the records of an untruncated index tile the whole input.
//
// # Limits
//
// Both limits are off by default and exist for operators who want a
// hard bound.
//
// [Options].MaxLineLength splits long lines. A line of more than L
// bytes becomes consecutive records of exactly L bytes followed by a
// shorter final record that carries the terminator. This is what a
// reader with a fixed L-byte line buffer produces, stated as policy.
//
// [Options].MaxLines caps the record count. Scanning stops when the
// cap is reached and [Index.Truncated] reports whether any input was
// left over. Truncation is not an error.
package lineindex
