// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/linefs/lib/clock"
	linefsfuse "github.com/bureau-foundation/linefs/lib/linefs/fuse"
	"github.com/bureau-foundation/linefs/lib/process"
	"github.com/bureau-foundation/linefs/lib/source"
)

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("linefs "+name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	return flagSet
}

func runMount(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags sourceFlags
	var allowOther, debug, kernelCache bool
	flagSet := newFlagSet("mount", stderr)
	flags.register(flagSet)
	flagSet.BoolVar(&allowOther, "allow-other", false, "let other users access the mount (needs user_allow_other)")
	flagSet.BoolVar(&kernelCache, "kernel-cache", true, "keep line content in the kernel page cache")
	flagSet.BoolVar(&debug, "debug", false, "log every FUSE request")

	cfg, logger, closeLog, err := setup(flagSet, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if flagSet.Changed("allow-other") {
		cfg.Mount.AllowOther = allowOther
	}
	if flagSet.Changed("kernel-cache") {
		cfg.Mount.KernelCache = kernelCache
	}
	if flagSet.Changed("debug") {
		cfg.Mount.Debug = debug
	}
	switch rest := flagSet.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Mount.Mountpoint = rest[0]
	default:
		return process.Usage("unexpected argument: %s", rest[1])
	}
	if cfg.Mount.Mountpoint == "" {
		return process.Usage("a mountpoint is required (argument or mount.mountpoint)")
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	server, err := linefsfuse.Mount(linefsfuse.Options{
		Mountpoint:   cfg.Mount.Mountpoint,
		Engine:       src.engine,
		AllowOther:   cfg.Mount.AllowOther,
		KernelCache:  cfg.Mount.KernelCache,
		EntryTimeout: cfg.Mount.EntryTimeout.Std(),
		AttrTimeout:  cfg.Mount.AttrTimeout.Std(),
		FsName:       cfg.Mount.FsName,
		Debug:        cfg.Mount.Debug,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	monitor := &source.Monitor{
		Handle:   src.handle,
		Clock:    clock.Real(),
		Interval: cfg.Source.CheckInterval.Std(),
		Logger:   logger,
	}

	// The group ends when the server stops serving: either the kernel
	// side was unmounted, or a signal cancelled ctx and we unmounted.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopped := make(chan struct{})
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		server.Wait()
		close(stopped)
		cancel()
		return nil
	})
	group.Go(func() error {
		select {
		case <-stopped:
			return nil
		case <-groupCtx.Done():
		}
		select {
		case <-stopped:
			return nil
		default:
		}
		logger.Info("unmounting", "mountpoint", cfg.Mount.Mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Error("failed to unmount FUSE filesystem; unmount it manually to exit",
				"mountpoint", cfg.Mount.Mountpoint,
				"error", err,
			)
			return fmt.Errorf("unmounting %s: %w", cfg.Mount.Mountpoint, err)
		}
		return nil
	})
	group.Go(func() error {
		monitor.Run(groupCtx)
		return nil
	})

	err = group.Wait()
	logger.Info("FUSE filesystem unmounted", "mountpoint", cfg.Mount.Mountpoint)
	return err
}

func runDump(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags sourceFlags
	flagSet := newFlagSet("dump", stderr)
	flags.register(flagSet)

	cfg, logger, closeLog, err := setup(flagSet, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	if rest := flagSet.Args(); len(rest) > 0 {
		return process.Usage("unexpected argument: %s", rest[0])
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	writer := bufio.NewWriter(stdout)
	for target := range src.engine.Lines() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := src.engine.ReadLine(target)
		if err != nil {
			return err
		}
		fmt.Fprintf(writer, "%d %s", target.Number(), line)
		if len(line) == 0 || line[len(line)-1] != '\n' {
			writer.WriteByte('\n')
		}
	}
	return writer.Flush()
}

func runStat(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags sourceFlags
	flagSet := newFlagSet("stat", stderr)
	flags.register(flagSet)

	cfg, logger, closeLog, err := setup(flagSet, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	if rest := flagSet.Args(); len(rest) > 0 {
		return process.Usage("unexpected argument: %s", rest[0])
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintf(stdout, "source:    %s\n", cfg.Source.Path)
	fmt.Fprintf(stdout, "backend:   %s\n", src.handle.Backend())
	fmt.Fprintf(stdout, "size:      %d\n", src.handle.Size())
	fmt.Fprintf(stdout, "indexed:   %d\n", src.index.Size())
	fmt.Fprintf(stdout, "lines:     %d\n", src.index.Len())
	fmt.Fprintf(stdout, "truncated: %t\n", src.index.Truncated())
	fmt.Fprintf(stdout, "blake3:    %s\n", src.index.DigestHex())
	return nil
}
