// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitUsage is the exit status for an invalid invocation.
const ExitUsage = 2

// Fatal writes "error: err" to stderr and exits with ExitCode(err).
// Use it in main() for errors from run().
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}

// Report writes err to w in the form Fatal uses.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}

// ExitCode returns the status a process should exit with after err:
// 0 for nil, the code of the first error in the chain with an
// ExitCode() int method, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// UsageError is an invocation mistake. It exits with ExitUsage.
type UsageError struct {
	err error
}

// Usage returns a UsageError with a formatted message. %w verbs wrap
// as in fmt.Errorf.
func Usage(format string, args ...any) error {
	return &UsageError{err: fmt.Errorf(format, args...)}
}

func (e *UsageError) Error() string { return e.err.Error() }
func (e *UsageError) Unwrap() error { return e.err }

// ExitCode returns ExitUsage.
func (e *UsageError) ExitCode() int { return ExitUsage }
