// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint helpers for linefs:
// reporting the error returned by run() before or without the
// structured logger, and choosing the exit status.
//
// Invocation mistakes (unknown subcommand, missing mountpoint, extra
// arguments) are built with [Usage] and exit with status 2. Every
// other error exits with status 1.
package process
