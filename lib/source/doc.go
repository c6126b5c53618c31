// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package source provides the read-only handle to the file whose lines
// linefs exposes.
//
// A [Handle] serves two access patterns over the same open file:
//
//   - a sequential reader ([Handle.NewReader]) consumed once by the
//     line index builder at startup, and
//   - position-explicit random access ([Handle.ReadAt]) used by every
//     read request afterwards.
//
// All reads are positional. There is no shared file cursor, so any
// number of goroutines may call ReadAt concurrently without locking,
// and the sequential reader does not disturb them.
//
// # Backends
//
// [BackendPread] issues pread(2) directly through golang.org/x/sys/unix.
// Interrupted calls (EINTR) are retried, but only up to
// [Options].MaxInterruptRetries consecutive interruptions; beyond that
// the read fails with [ErrInterrupted] rather than spinning. Short
// reads are continued from where they stopped until the buffer is full
// or end of file is reached.
//
// [BackendMmap] maps the file with golang.org/x/exp/mmap and copies out
// of the mapping. It never sees EINTR.
//
// # Immutability
//
// The handle assumes the file is not modified while it is open: sizes
// and line offsets computed at startup are never refreshed.
// [Handle.Changed] and [Monitor] detect a violation of that assumption
// so it can be reported, but nothing is re-read.
package source
