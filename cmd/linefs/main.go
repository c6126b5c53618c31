// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// linefs presents the lines of one text file as a directory of
// read-only files named 1 through N.
//
// Three subcommands share the same source configuration:
//
//   - mount indexes the source and serves it over FUSE until
//     interrupted or unmounted
//   - dump prints every line prefixed with its number
//   - stat prints the index summary: line count, size, truncation,
//     and the BLAKE3 digest of the indexed bytes
//
// The source path comes from source.path in the config file, the
// LINEFS_FILE environment variable, or --source, in increasing order of
// precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/linefs/lib/process"
	"github.com/bureau-foundation/linefs/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

// command is one subcommand. Its run function receives the arguments
// after the subcommand name.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{name: "mount", summary: "serve the line directory over FUSE", run: runMount},
	{name: "dump", summary: "print every line prefixed with its number", run: runDump},
	{name: "stat", summary: "print the line index summary", run: runStat},
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return process.Usage("a subcommand is required")
	}

	switch args[0] {
	case "--version", "version":
		fmt.Fprintln(stdout, version.Full())
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err := cmd.run(ctx, args[1:], stdout, stderr)
			if errors.Is(err, pflag.ErrHelp) {
				return nil
			}
			return err
		}
	}

	printUsage(stderr)
	return process.Usage("unknown subcommand %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `linefs serves the lines of a file as a directory of files.

Usage:
  linefs mount [flags] MOUNTPOINT
  linefs dump [flags]
  linefs stat [flags]
  linefs --version

Subcommands:
`)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-6s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, `
Configuration is read from --config or $LINEFS_CONFIG when set.
The source file is source.path, $LINEFS_FILE, or --source.

Run "linefs SUBCOMMAND --help" for the flags of a subcommand.
`)
}
