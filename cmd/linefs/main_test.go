// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/linefs/lib/process"
	"github.com/bureau-foundation/linefs/lib/source"
	"github.com/bureau-foundation/linefs/lib/testutil"
)

// cleanEnv clears the variables that would leak a developer's own
// configuration into the tests.
func cleanEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINEFS_CONFIG", "")
	t.Setenv("LINEFS_FILE", "")
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestDump(t *testing.T) {
	cleanEnv(t)
	sourcePath := testutil.WriteSource(t, "source.txt", "ab\ncde\nlast")

	stdout, _, err := runCommand(t, "dump", "--source", sourcePath)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if want := "1 ab\n2 cde\n3 last\n"; stdout != want {
		t.Errorf("dump output = %q, want %q", stdout, want)
	}
}

func TestDumpBothBackendsAgree(t *testing.T) {
	cleanEnv(t)
	sourcePath := testutil.WriteSource(t, "source.txt", "alpha\r\nbeta\x00gamma\n\n")

	var outputs []string
	for _, backend := range []source.Backend{source.BackendPread, source.BackendMmap} {
		stdout, _, err := runCommand(t, "dump", "--source", sourcePath, "--backend", string(backend))
		if err != nil {
			t.Fatalf("dump --backend %s: %v", backend, err)
		}
		outputs = append(outputs, stdout)
	}
	if outputs[0] != outputs[1] {
		t.Errorf("backends disagree:\npread %q\nmmap  %q", outputs[0], outputs[1])
	}
	if want := "1 alpha\r\n2 beta\x00gamma\n3 \n"; outputs[0] != want {
		t.Errorf("dump output = %q, want %q", outputs[0], want)
	}
}

func TestDumpSplitsLongLines(t *testing.T) {
	cleanEnv(t)
	sourcePath := testutil.WriteSource(t, "source.txt", "abcdefg\nhi\n")

	stdout, _, err := runCommand(t, "dump", "--source", sourcePath, "--max-line-length", "3")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if want := "1 abc\n2 def\n3 g\n4 hi\n"; stdout != want {
		t.Errorf("dump output = %q, want %q", stdout, want)
	}
}

func TestStat(t *testing.T) {
	cleanEnv(t)
	content := "one\ntwo\nthree\nfour\n"
	sourcePath := testutil.WriteSource(t, "source.txt", content)

	stdout, stderr, err := runCommand(t, "stat", "--source", sourcePath, "--max-lines", "2")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	digest := blake3.Sum256([]byte("one\ntwo\n"))
	for _, want := range []string{
		"lines:     2\n",
		"size:      19\n",
		"indexed:   8\n",
		"truncated: true\n",
		"blake3:    " + hex.EncodeToString(digest[:]) + "\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stat output missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "line capacity reached") {
		t.Errorf("truncation was not logged: %q", stderr)
	}
}

func TestSourcePrecedence(t *testing.T) {
	cleanEnv(t)
	fromFile := testutil.WriteSource(t, "file.txt", "file\n")
	fromEnv := testutil.WriteSource(t, "env.txt", "env\n")
	fromFlag := testutil.WriteSource(t, "flag.txt", "flag\n")
	configPath := testutil.WriteSource(t, "linefs.yaml", "source:\n  path: "+fromFile+"\nlog:\n  level: error\n")

	stdout, _, err := runCommand(t, "dump", "--config", configPath)
	if err != nil || stdout != "1 file\n" {
		t.Fatalf("config only: %q, %v", stdout, err)
	}

	t.Setenv("LINEFS_FILE", fromEnv)
	stdout, _, err = runCommand(t, "dump", "--config", configPath)
	if err != nil || stdout != "1 env\n" {
		t.Fatalf("env over config: %q, %v", stdout, err)
	}

	stdout, _, err = runCommand(t, "dump", "--config", configPath, "--source", fromFlag)
	if err != nil || stdout != "1 flag\n" {
		t.Fatalf("flag over env: %q, %v", stdout, err)
	}

	t.Setenv("LINEFS_CONFIG", configPath)
	t.Setenv("LINEFS_FILE", "")
	stdout, _, err = runCommand(t, "dump")
	if err != nil || stdout != "1 file\n" {
		t.Fatalf("config from environment: %q, %v", stdout, err)
	}
}

func TestMissingSource(t *testing.T) {
	cleanEnv(t)
	_, _, err := runCommand(t, "stat")
	if err == nil || !strings.Contains(err.Error(), "source.path is required") {
		t.Errorf("stat without source = %v", err)
	}

	_, _, err = runCommand(t, "dump", "--source", filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dump of missing file = %v, want not exist", err)
	}

	_, _, err = runCommand(t, "dump", "--source", t.TempDir())
	if !errors.Is(err, source.ErrNotRegular) {
		t.Errorf("dump of directory = %v, want ErrNotRegular", err)
	}
}

func TestInvalidFlags(t *testing.T) {
	cleanEnv(t)
	sourcePath := testutil.WriteSource(t, "source.txt", "x\n")

	tests := [][]string{
		{"dump", "--source", sourcePath, "--backend", "splice"},
		{"dump", "--source", sourcePath, "--max-lines", "-1"},
		{"dump", "--source", sourcePath, "--log-level", "loud"},
		{"dump", "--source", sourcePath, "--no-such-flag"},
		{"stat", "--source", sourcePath, "extra"},
		{"mount", "--source", sourcePath},
		{"mount", "--source", sourcePath, "a", "b"},
	}
	for _, args := range tests {
		if _, _, err := runCommand(t, args...); err == nil {
			t.Errorf("run(%q) succeeded", args)
		}
	}
}

func TestTopLevel(t *testing.T) {
	cleanEnv(t)

	stdout, _, err := runCommand(t, "--version")
	if err != nil || !strings.HasPrefix(stdout, "linefs ") {
		t.Errorf("--version = %q, %v", stdout, err)
	}

	stdout, _, err = runCommand(t, "--help")
	if err != nil || !strings.Contains(stdout, "linefs mount") {
		t.Errorf("--help = %q, %v", stdout, err)
	}

	if _, _, err := runCommand(t); err == nil {
		t.Error("run with no arguments succeeded")
	}
	if _, _, err := runCommand(t, "unmount"); process.ExitCode(err) != process.ExitUsage {
		t.Errorf("unknown subcommand = %v, want a usage error", err)
	}
	if _, _, err := runCommand(t, "dump", "--no-such-flag"); process.ExitCode(err) != process.ExitUsage {
		t.Errorf("unknown flag = %v, want a usage error", err)
	}

	// Subcommand help is not an error.
	if _, stderr, err := runCommand(t, "dump", "--help"); err != nil || !strings.Contains(stderr, "--max-lines") {
		t.Errorf("dump --help = %q, %v", stderr, err)
	}
}
