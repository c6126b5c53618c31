// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/linefs/lib/linefs"
)

const (
	// DefaultEntryTimeout is how long the kernel caches name lookups.
	DefaultEntryTimeout = 1 * time.Second

	// DefaultAttrTimeout is how long the kernel caches attributes.
	DefaultAttrTimeout = 1 * time.Second

	// DefaultFsName is the source name shown in /proc/mounts.
	DefaultFsName = "linefs"

	negativeTimeout = 100 * time.Millisecond

	// blockSize is reported as st_blksize.
	blockSize = 65536
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Engine serves the line directory.
	Engine *linefs.Engine

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// KernelCache keeps line content in the kernel page cache
	// across opens.
	KernelCache bool

	// EntryTimeout and AttrTimeout bound how long the kernel caches
	// lookups and attributes. Zero uses the defaults.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	// FsName is the filesystem source name. Empty uses
	// DefaultFsName.
	FsName string

	// Debug logs every FUSE request and response to stderr.
	Debug bool

	// Logger receives diagnostic messages. If nil, errors go to
	// stderr.
	Logger *slog.Logger
}

// Mount mounts the line directory at the configured mountpoint. The
// caller must call Unmount on the returned Server when done. The
// mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if options.EntryTimeout == 0 {
		options.EntryTimeout = DefaultEntryTimeout
	}
	if options.AttrTimeout == 0 {
		options.AttrTimeout = DefaultAttrTimeout
	}
	if options.FsName == "" {
		options.FsName = DefaultFsName
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options, uid: uint32(os.Getuid()), gid: uint32(os.Getgid())}

	entryTimeout := options.EntryTimeout
	attrTimeout := options.AttrTimeout
	negative := negativeTimeout

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negative,
		MountOptions: fuse.MountOptions{
			FsName:     options.FsName,
			Name:       "linefs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("line filesystem mounted",
		"mountpoint", options.Mountpoint,
		"lines", options.Engine.Len(),
	)
	return server, nil
}

// errno translates an engine error to the errno the kernel sees.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, linefs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, linefs.ErrAccessDenied):
		return syscall.EACCES
	case errors.Is(err, linefs.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, linefs.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, linefs.ErrInvalidOffset):
		return syscall.EINVAL
	}
	return syscall.EIO
}

// fillAttr copies engine metadata into a FUSE attribute block.
func fillAttr(attr linefs.Attr, uid, gid uint32, out *fuse.Attr) {
	if attr.IsDir() {
		out.Mode = syscall.S_IFDIR | uint32(attr.Mode.Perm())
		out.Ino = 1
	} else {
		out.Mode = syscall.S_IFREG | uint32(attr.Mode.Perm())
		out.Ino = inode(attr.Line)
	}
	out.Size = uint64(attr.Size)
	out.Nlink = attr.Nlink
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = blockSize
	out.Owner = fuse.Owner{Uid: uid, Gid: gid}
	if !attr.ModTime.IsZero() {
		modTime := attr.ModTime
		out.SetTimes(&modTime, &modTime, &modTime)
	}
}

// inode is the stable inode number of a line. The root is 1.
func inode(line int) uint64 { return uint64(line) + 1 }

// rootNode is the line directory.
type rootNode struct {
	gofuse.Inode
	options *Options
	uid     uint32
	gid     uint32
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeOpendirer = (*rootNode)(nil)

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	target, err := r.options.Engine.Lookup(name)
	if err != nil {
		return nil, errno(err)
	}
	node := &lineNode{root: r, target: target}
	fillAttr(r.options.Engine.TargetAttributes(target), r.uid, r.gid, &out.Attr)
	child := r.NewInode(ctx, node, gofuse.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  inode(target.Number()),
	})
	return child, 0
}

func (r *rootNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(r.options.Engine.TargetAttributes(linefs.Target{}), r.uid, r.gid, &out.Attr)
	return 0
}

func (r *rootNode) Opendir(ctx context.Context) syscall.Errno {
	return 0
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	names, err := r.options.Engine.ListDirectory("/")
	if err != nil {
		r.options.Logger.Error("listing line directory", "error", err)
		return nil, errno(err)
	}
	return newLineDirStream(names), 0
}

// lineDirStream pulls names from the engine's listing as the kernel
// asks for them.
type lineDirStream struct {
	next    func() (string, bool)
	stop    func()
	pending string
	ready   bool
	done    bool
}

func newLineDirStream(names iter.Seq[string]) *lineDirStream {
	next, stop := iter.Pull(names)
	return &lineDirStream{next: next, stop: stop}
}

// fill advances to the next line name, skipping the "." and ".."
// entries go-fuse adds on its own.
func (s *lineDirStream) fill() {
	for !s.ready && !s.done {
		name, ok := s.next()
		if !ok {
			s.done = true
			s.stop()
			return
		}
		if name == "." || name == ".." {
			continue
		}
		s.pending = name
		s.ready = true
	}
}

func (s *lineDirStream) HasNext() bool {
	s.fill()
	return s.ready
}

func (s *lineDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	s.fill()
	if !s.ready {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	s.ready = false
	number, err := strconv.Atoi(s.pending)
	if err != nil {
		return fuse.DirEntry{}, syscall.EIO
	}
	return fuse.DirEntry{
		Name: s.pending,
		Mode: syscall.S_IFREG,
		Ino:  inode(number),
	}, 0
}

func (s *lineDirStream) Close() {
	s.ready = false
	if !s.done {
		s.done = true
		s.stop()
	}
}

// lineNode is one line file.
type lineNode struct {
	gofuse.Inode
	root   *rootNode
	target linefs.Target
}

var _ gofuse.InodeEmbedder = (*lineNode)(nil)
var _ gofuse.NodeGetattrer = (*lineNode)(nil)
var _ gofuse.NodeSetattrer = (*lineNode)(nil)
var _ gofuse.NodeOpener = (*lineNode)(nil)
var _ gofuse.NodeReader = (*lineNode)(nil)

func (l *lineNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(l.root.options.Engine.TargetAttributes(l.target), l.root.uid, l.root.gid, &out.Attr)
	return 0
}

// Setattr refuses every change, including the truncation the kernel
// sends for O_TRUNC.
func (l *lineNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (l *lineNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if err := linefs.CheckOpenFlags(int(flags)); err != nil {
		return nil, 0, errno(err)
	}
	var openFlags uint32
	if l.root.options.KernelCache {
		openFlags = fuse.FOPEN_KEEP_CACHE
	}
	return nil, openFlags, 0
}

func (l *lineNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := l.root.options.Engine.ReadTarget(l.target, dest, off)
	if err != nil {
		code := errno(err)
		if code == syscall.EIO {
			l.root.options.Logger.Error("read failed",
				"line", l.target.Number(),
				"offset", off,
				"length", len(dest),
				"error", err,
			)
		}
		return nil, code
	}
	return fuse.ReadResultData(dest[:count]), 0
}
