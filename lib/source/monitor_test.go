// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/linefs/lib/clock"
	"github.com/bureau-foundation/linefs/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMonitorCheckReportsOncePerChange(t *testing.T) {
	path := testutil.WriteSource(t, "source.txt", "abc\n")
	handle := openSource(t, path, BackendPread)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	changes := 0
	monitor := &Monitor{Handle: handle, OnChange: func() { changes++ }}

	reported := monitor.check(logger, false)
	if reported || changes != 0 {
		t.Fatalf("untouched file: reported=%v changes=%d", reported, changes)
	}

	if err := os.WriteFile(path, []byte("abc\nmore\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reported = monitor.check(logger, reported)
	reported = monitor.check(logger, reported)
	if !reported || changes != 1 {
		t.Fatalf("after change: reported=%v changes=%d, want true 1", reported, changes)
	}
	if !strings.Contains(logs.String(), "source file changed after indexing") {
		t.Errorf("expected change warning in log, got %q", logs.String())
	}

	// Restoring the opened size and mtime re-arms the monitor.
	if err := os.WriteFile(path, []byte("abc\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, handle.ModTime(), handle.ModTime()); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	reported = monitor.check(logger, reported)
	if reported {
		t.Fatal("monitor did not re-arm after the file was restored")
	}

	if err := os.WriteFile(path, []byte("changed again\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	monitor.check(logger, reported)
	if changes != 2 {
		t.Errorf("changes = %d, want 2", changes)
	}
}

func TestMonitorRunDetectsChange(t *testing.T) {
	path := testutil.WriteSource(t, "source.txt", "abc\n")
	handle := openSource(t, path, BackendPread)

	fakeClock := clock.Fake(epoch)
	changed := make(chan struct{}, 1)
	monitor := &Monitor{
		Handle:   handle,
		Clock:    fakeClock,
		Interval: time.Second,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		OnChange: func() { changed <- struct{}{} },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()
	fakeClock.WaitForTickers(1)

	if err := os.WriteFile(path, []byte("abc\ndef\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fakeClock.Advance(time.Second)

	testutil.RequireReceive(t, changed, 5*time.Second, "change report")

	cancel()
	testutil.RequireClosed(t, done, 5*time.Second, "monitor stopped")
	if fakeClock.LiveTickers() != 0 {
		t.Errorf("ticker not stopped after Run returned")
	}
}

func TestMonitorDisabled(t *testing.T) {
	handle := openSource(t, testutil.WriteSource(t, "source.txt", "abc\n"), BackendPread)
	fakeClock := clock.Fake(epoch)

	// Returns immediately without a ticker, even with a live context.
	(&Monitor{Handle: handle, Clock: fakeClock}).Run(context.Background())
	if fakeClock.LiveTickers() != 0 {
		t.Errorf("disabled monitor registered a ticker")
	}
}
