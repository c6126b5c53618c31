// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linefs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/linefs/lib/lineindex"
)

const (
	// DefaultDirMode is the permission of the root directory: owner
	// may list and traverse it.
	DefaultDirMode fs.FileMode = 0o500

	// DefaultFileMode is the permission of every line file: owner
	// read only.
	DefaultFileMode fs.FileMode = 0o400
)

// writeBits are stripped from any configured mode; nothing in the
// tree is writable.
const writeBits fs.FileMode = 0o222

var (
	// ErrNotFound is returned for a path that names neither the root
	// nor an existing line.
	ErrNotFound = errors.New("linefs: no such entry")

	// ErrAccessDenied is returned when Open asks for anything other
	// than read-only access.
	ErrAccessDenied = errors.New("linefs: access denied")

	// ErrNotDirectory is returned when listing a line.
	ErrNotDirectory = errors.New("linefs: not a directory")

	// ErrIsDirectory is returned when reading the root.
	ErrIsDirectory = errors.New("linefs: is a directory")

	// ErrInvalidOffset is returned for a negative read offset.
	ErrInvalidOffset = errors.New("linefs: invalid offset")

	// ErrIO wraps failures of the underlying source read.
	ErrIO = errors.New("linefs: source read failed")
)

// Options adjusts the metadata an Engine reports. The zero value uses
// the defaults.
type Options struct {
	// DirMode is the root directory's permission bits. Zero uses
	// DefaultDirMode. Write bits are always removed.
	DirMode fs.FileMode

	// FileMode is each line file's permission bits. Zero uses
	// DefaultFileMode. Write bits are always removed.
	FileMode fs.FileMode

	// ModTime is reported as the modification time of every entry,
	// normally the source file's.
	ModTime time.Time
}

// Engine serves one indexed source. Construct it with New; it is
// immutable afterwards.
type Engine struct {
	source   io.ReaderAt
	index    *lineindex.Index
	dirMode  fs.FileMode
	fileMode fs.FileMode
	modTime  time.Time
}

// New returns an Engine that reads line bytes from source at the
// offsets recorded in index. The index must have been built from the
// same bytes source serves.
func New(source io.ReaderAt, index *lineindex.Index, options Options) (*Engine, error) {
	if source == nil {
		return nil, errors.New("linefs: source is required")
	}
	if index == nil {
		return nil, errors.New("linefs: index is required")
	}
	if options.DirMode == 0 {
		options.DirMode = DefaultDirMode
	}
	if options.FileMode == 0 {
		options.FileMode = DefaultFileMode
	}
	return &Engine{
		source:   source,
		index:    index,
		dirMode:  options.DirMode.Perm() &^ writeBits,
		fileMode: options.FileMode.Perm() &^ writeBits,
		modTime:  options.ModTime,
	}, nil
}

// Len returns the number of line files.
func (e *Engine) Len() int { return e.index.Len() }

// Index returns the line index the engine serves.
func (e *Engine) Index() *lineindex.Index { return e.index }

// Attr describes one entry of the line directory.
type Attr struct {
	// Name is the entry's file name: "" for the root, otherwise the
	// decimal line number.
	Name string

	// Line is the 1-based line number, or 0 for the root.
	Line int

	// Mode holds the type and permission bits. The root carries
	// fs.ModeDir; lines are regular files.
	Mode fs.FileMode

	// Size is the line length in bytes, or 0 for the root.
	Size int64

	// Nlink is the link count: 2 for the root, 1 for a line.
	Nlink uint32

	// ModTime is the engine's configured modification time.
	ModTime time.Time
}

// IsDir reports whether the entry is the root directory.
func (a Attr) IsDir() bool { return a.Mode.IsDir() }

// Attributes returns the metadata for path.
func (e *Engine) Attributes(path string) (Attr, error) {
	target, err := e.Resolve(path)
	if err != nil {
		return Attr{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return e.TargetAttributes(target), nil
}

// TargetAttributes returns the metadata for an already resolved
// target.
func (e *Engine) TargetAttributes(target Target) Attr {
	if target.IsRoot() {
		return Attr{
			Mode:    fs.ModeDir | e.dirMode,
			Nlink:   2,
			ModTime: e.modTime,
		}
	}
	// Lookup and Lines only produce targets inside the index; any
	// other target has no metadata.
	record, ok := e.index.Record(target.Position())
	if !ok {
		return Attr{}
	}
	return Attr{
		Name:    target.Name(),
		Line:    target.number,
		Mode:    e.fileMode,
		Size:    record.Length,
		Nlink:   1,
		ModTime: e.modTime,
	}
}

// ListDirectory returns the names in the root directory: ".", "..",
// and "1" through "N" in ascending order. Names are produced as the
// sequence is consumed. Listing a line fails with ErrNotDirectory.
func (e *Engine) ListDirectory(path string) (iter.Seq[string], error) {
	target, err := e.Resolve(path)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: err}
	}
	if !target.IsRoot() {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: ErrNotDirectory}
	}

	count := e.index.Len()
	return func(yield func(string) bool) {
		if !yield(".") || !yield("..") {
			return
		}
		for number := 1; number <= count; number++ {
			if !yield(strconv.Itoa(number)) {
				return
			}
		}
	}, nil
}

// Lines returns the resolved target of every line in ascending order.
func (e *Engine) Lines() iter.Seq[Target] {
	count := e.index.Len()
	return func(yield func(Target) bool) {
		for position := 0; position < count; position++ {
			if !yield(Target{number: position + 1}) {
				return
			}
		}
	}
}

// Open checks whether path may be opened with the given open(2) flags.
// The path is resolved first, so a missing entry reports ErrNotFound
// even when the flags would also be refused. Any access mode other
// than O_RDONLY, and any of O_CREAT, O_TRUNC, or O_APPEND, is refused
// with ErrAccessDenied.
func (e *Engine) Open(path string, flags int) error {
	if _, err := e.Resolve(path); err != nil {
		return &fs.PathError{Op: "open", Path: path, Err: err}
	}
	if err := CheckOpenFlags(flags); err != nil {
		return &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return nil
}

// CheckOpenFlags returns ErrAccessDenied unless flags describe a
// read-only open.
func CheckOpenFlags(flags int) error {
	if flags&unix.O_ACCMODE != unix.O_RDONLY {
		return ErrAccessDenied
	}
	if flags&(unix.O_CREAT|unix.O_TRUNC|unix.O_APPEND) != 0 {
		return ErrAccessDenied
	}
	return nil
}

// Read copies bytes of the line named by path into dest, starting off
// bytes into the line. len(dest) is the requested length. The result
// is clipped at the end of the line: an offset at or past the end
// yields 0 bytes and no error.
func (e *Engine) Read(path string, dest []byte, off int64) (int, error) {
	target, err := e.Resolve(path)
	if err != nil {
		return 0, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	if target.IsRoot() {
		return 0, &fs.PathError{Op: "read", Path: path, Err: ErrIsDirectory}
	}
	return e.ReadTarget(target, dest, off)
}

// ReadTarget is Read for an already resolved line target.
func (e *Engine) ReadTarget(target Target, dest []byte, off int64) (int, error) {
	if target.IsRoot() {
		return 0, &fs.PathError{Op: "read", Path: "/", Err: ErrIsDirectory}
	}
	record, ok := e.index.Record(target.Position())
	if !ok {
		return 0, &fs.PathError{Op: "read", Path: target.Name(), Err: ErrNotFound}
	}
	if off < 0 {
		return 0, &fs.PathError{Op: "read", Path: target.Name(), Err: ErrInvalidOffset}
	}
	if off >= record.Length {
		return 0, nil
	}

	want := record.Length - off
	if int64(len(dest)) < want {
		want = int64(len(dest))
	}
	if want == 0 {
		return 0, nil
	}

	count, err := e.source.ReadAt(dest[:want], record.Offset+off)
	if int64(count) == want {
		// io.ReaderAt may report io.EOF alongside a full read of the
		// source's final bytes.
		return count, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return 0, &fs.PathError{
		Op:   "read",
		Path: target.Name(),
		Err:  fmt.Errorf("%w: %d of %d bytes at source offset %d: %w", ErrIO, count, want, record.Offset+off, err),
	}
}

// ReadLine returns the full content of a line target, terminator
// included.
func (e *Engine) ReadLine(target Target) ([]byte, error) {
	attr := e.TargetAttributes(target)
	if attr.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: "/", Err: ErrIsDirectory}
	}
	buffer := make([]byte, attr.Size)
	count, err := e.ReadTarget(target, buffer, 0)
	if err != nil {
		return nil, err
	}
	return buffer[:count], nil
}
