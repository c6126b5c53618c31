// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse mounts a [linefs.Engine] as a read-only FUSE filesystem.
//
// The mount is a single flat directory. Each entry "1" through "N" is a
// regular file whose content is one line of the source file, newline
// included. Nothing in the tree is writable: opens that ask for write
// access, creation, truncation, or append fail with EACCES. Setattr
// fails with EROFS, and the remaining mutations (mkdir, unlink, rename)
// are refused by go-fuse's defaults.
//
// # Request Mapping
//
// Kernel requests are answered by the engine:
//
//   - LOOKUP and GETATTR use Engine.Lookup and Engine.TargetAttributes.
//     Inode numbers are stable: the root is 1, line N is N+1.
//   - READDIR streams Engine.ListDirectory. go-fuse synthesizes "." and
//     "..", so the engine's own entries for them are skipped.
//   - OPEN checks the flags with linefs.CheckOpenFlags.
//   - READ uses Engine.ReadTarget, which clips at the end of the line.
//
// Engine errors are translated to errno values by their sentinel:
// ErrNotFound to ENOENT, ErrAccessDenied to EACCES, ErrNotDirectory to
// ENOTDIR, ErrIsDirectory to EISDIR, ErrInvalidOffset to EINVAL.
// Anything else is logged and reported as EIO.
//
// # Caching
//
// The source is assumed immutable while mounted, so entry and
// attribute timeouts default to one second and Options.KernelCache
// lets the kernel page cache keep line content across opens.
package fuse
