// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/linefs/lib/config"
	"github.com/bureau-foundation/linefs/lib/lineindex"
	"github.com/bureau-foundation/linefs/lib/linefs"
	"github.com/bureau-foundation/linefs/lib/logging"
	"github.com/bureau-foundation/linefs/lib/process"
	"github.com/bureau-foundation/linefs/lib/source"
)

// sourceFlags are the flags every subcommand accepts. Each one
// overrides the matching config field only when given.
type sourceFlags struct {
	configPath    string
	sourcePath    string
	backend       string
	maxLines      int
	maxLineLength int64
	logLevel      string
}

func (f *sourceFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to linefs.yaml (default: $"+config.ConfigEnv+")")
	flagSet.StringVar(&f.sourcePath, "source", "", "file whose lines are served (default: source.path or $"+config.SourceEnv+")")
	flagSet.StringVar(&f.backend, "backend", "", "read backend: pread or mmap")
	flagSet.IntVar(&f.maxLines, "max-lines", 0, "serve at most this many lines (0: unbounded)")
	flagSet.Int64Var(&f.maxLineLength, "max-line-length", 0, "split lines longer than this many bytes (0: unbounded)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, or error")
}

// loadConfig loads the config file, applies the flags that were set,
// and validates the result.
func loadConfig(flagSet *pflag.FlagSet, flags *sourceFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flagSet.Changed("source") {
		cfg.Source.Path = flags.sourcePath
	}
	if flagSet.Changed("backend") {
		cfg.Source.Backend = flags.backend
	}
	if flagSet.Changed("max-lines") {
		cfg.Index.MaxLines = flags.maxLines
	}
	if flagSet.Changed("max-line-length") {
		cfg.Index.MaxLineLength = flags.maxLineLength
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// served is an open source with its index and engine. Close releases
// the source; the engine must not be used afterwards.
type served struct {
	handle *source.Handle
	index  *lineindex.Index
	engine *linefs.Engine
}

func (s *served) Close() error { return s.handle.Close() }

// openSource opens and indexes the configured source. Any failure
// here aborts the command before anything is served.
func openSource(cfg *config.Config, logger *slog.Logger) (*served, error) {
	handle, err := source.Open(cfg.Source.Path, source.Options{
		Backend:             source.Backend(cfg.Source.Backend),
		MaxInterruptRetries: cfg.Source.MaxInterruptRetries,
	})
	if err != nil {
		return nil, err
	}

	index, err := lineindex.Build(handle.NewReader(), lineindex.Options{
		MaxLines:      cfg.Index.MaxLines,
		MaxLineLength: cfg.Index.MaxLineLength,
	})
	if err == nil {
		err = index.Validate(handle.Size())
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("indexing %s: %w", cfg.Source.Path, err), handle.Close())
	}

	engine, err := linefs.New(handle, index, linefs.Options{
		DirMode:  cfg.Mount.DirMode.Perm(),
		FileMode: cfg.Mount.FileMode.Perm(),
		ModTime:  handle.ModTime(),
	})
	if err != nil {
		return nil, errors.Join(err, handle.Close())
	}

	logger.Info("source indexed",
		"path", cfg.Source.Path,
		"backend", handle.Backend(),
		"lines", index.Len(),
		"bytes", index.Size(),
		"blake3", index.DigestHex(),
	)
	if index.Truncated() {
		logger.Warn("line capacity reached; remaining lines are not served",
			"path", cfg.Source.Path,
			"max_lines", cfg.Index.MaxLines,
			"indexed_bytes", index.Size(),
			"source_bytes", handle.Size(),
		)
	}
	return &served{handle: handle, index: index, engine: engine}, nil
}

// setup is the shared prologue of every subcommand: parse flags, load
// and validate config, build the logger.
func setup(flagSet *pflag.FlagSet, flags *sourceFlags, args []string, stderr io.Writer) (*config.Config, *slog.Logger, func() error, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil, nil, err
		}
		return nil, nil, nil, process.Usage("%w", err)
	}
	cfg, err := loadConfig(flagSet, flags)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, closeLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}
