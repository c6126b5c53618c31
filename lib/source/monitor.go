// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/linefs/lib/clock"
)

// Monitor polls a Handle for modification of the underlying file.
// Detection is all it does: the line index is never rebuilt, so once
// the file changes, reads may return bytes that no longer correspond
// to whole lines. The warning tells an operator to remount.
type Monitor struct {
	// Handle is the source being watched.
	Handle *Handle

	// Clock drives the polling ticker. Nil uses clock.Real().
	Clock clock.Clock

	// Interval between checks. Zero or negative disables the monitor;
	// Run returns immediately.
	Interval time.Duration

	// Logger receives the change warning. Nil uses slog.Default().
	Logger *slog.Logger

	// OnChange, when set, is called each time a change is first
	// observed (after the warning is logged).
	OnChange func()
}

// Run checks the source every Interval until ctx is done. A change is
// reported once; if the file later matches the opened state again
// (for example a touch that was reverted) the monitor re-arms.
func (m *Monitor) Run(ctx context.Context) {
	if m.Interval <= 0 || m.Handle == nil {
		return
	}
	clk := m.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := clk.NewTicker(m.Interval)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		reported = m.check(logger, reported)
	}
}

// check performs one poll. It takes and returns whether the current
// change has already been reported.
func (m *Monitor) check(logger *slog.Logger, reported bool) bool {
	changed, err := m.Handle.Changed()
	if err != nil {
		logger.Warn("source check failed", "path", m.Handle.Path(), "error", err)
		return reported
	}
	if !changed {
		return false
	}
	if reported {
		return true
	}

	logger.Warn("source file changed after indexing; line boundaries are stale until remount",
		"path", m.Handle.Path(),
		"indexed_size", m.Handle.Size(),
		"indexed_mtime", m.Handle.ModTime(),
	)
	if m.OnChange != nil {
		m.OnChange()
	}
	return true
}
