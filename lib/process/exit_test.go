// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"usage", Usage("unknown subcommand %q", "frob"), ExitUsage},
		{"wrapped usage", fmt.Errorf("parsing: %w", Usage("bad flag")), ExitUsage},
	}
	for _, test := range tests {
		if got := ExitCode(test.err); got != test.want {
			t.Errorf("ExitCode(%s) = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestUsageWraps(t *testing.T) {
	err := Usage("reading %s: %w", "linefs.yaml", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Usage did not wrap its %%w argument: %v", err)
	}
	if err.Error() != "reading linefs.yaml: file does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	Report(&buffer, errors.New("mount failed"))
	if buffer.String() != "error: mount failed\n" {
		t.Errorf("Report wrote %q", buffer.String())
	}
}
