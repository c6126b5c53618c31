// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for linefs packages.
//
// [WriteSource] writes a source file into the test's temporary
// directory and returns its path. [NumberedLines] builds source content
// whose every line is distinct, so a read that strays into a neighbour
// shows up as wrong bytes.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts are used.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no linefs-internal dependencies.
package testutil
