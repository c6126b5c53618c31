// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linefs

import (
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// FS returns the engine as an io/fs file system rooted at ".". The
// result also implements fs.ReadDirFS, fs.ReadFileFS, and fs.StatFS.
// Files returned by Open implement io.ReaderAt and io.Seeker.
func (e *Engine) FS() fs.FS { return &lineFS{engine: e} }

type lineFS struct {
	engine *Engine
}

var (
	_ fs.ReadDirFS  = (*lineFS)(nil)
	_ fs.ReadFileFS = (*lineFS)(nil)
	_ fs.StatFS     = (*lineFS)(nil)
)

// resolve maps an io/fs name to a target, translating engine errors
// into the io/fs error vocabulary.
func (f *lineFS) resolve(op, name string) (Target, error) {
	if !fs.ValidPath(name) {
		return Target{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return Target{}, nil
	}
	target, err := f.engine.Lookup(name)
	if err != nil {
		return Target{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return target, nil
}

func (f *lineFS) Open(name string) (fs.File, error) {
	target, err := f.resolve("open", name)
	if err != nil {
		return nil, err
	}
	info := f.info(target)
	if target.IsRoot() {
		return &dirFile{engine: f.engine, info: info}, nil
	}
	return &lineFile{engine: f.engine, target: target, info: info}, nil
}

func (f *lineFS) Stat(name string) (fs.FileInfo, error) {
	target, err := f.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return f.info(target), nil
}

// ReadDir lists the root sorted by file name, as fs.ReadDirFS
// requires. That order is lexical ("1", "10", "2"), unlike
// Engine.ListDirectory.
func (f *lineFS) ReadDir(name string) ([]fs.DirEntry, error) {
	target, err := f.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	if !target.IsRoot() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	entries := make([]fs.DirEntry, 0, f.engine.Len())
	for target := range f.engine.Lines() {
		entries = append(entries, fs.FileInfoToDirEntry(f.info(target)))
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

func (f *lineFS) ReadFile(name string) ([]byte, error) {
	target, err := f.resolve("readfile", name)
	if err != nil {
		return nil, err
	}
	if target.IsRoot() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrIsDirectory}
	}
	return f.engine.ReadLine(target)
}

func (f *lineFS) info(target Target) *fileInfo {
	return &fileInfo{attr: f.engine.TargetAttributes(target)}
}

// fileInfo adapts Attr to fs.FileInfo.
type fileInfo struct {
	attr Attr
}

func (i *fileInfo) Name() string {
	if i.attr.IsDir() {
		return "."
	}
	return i.attr.Name
}

func (i *fileInfo) Size() int64        { return i.attr.Size }
func (i *fileInfo) Mode() fs.FileMode  { return i.attr.Mode }
func (i *fileInfo) ModTime() time.Time { return i.attr.ModTime }
func (i *fileInfo) IsDir() bool        { return i.attr.IsDir() }
func (i *fileInfo) Sys() any           { return i.attr }

// lineFile is an open line. Its read cursor is private to the handle.
type lineFile struct {
	engine *Engine
	target Target
	info   *fileInfo
	offset int64
	closed bool
}

var (
	_ io.ReaderAt = (*lineFile)(nil)
	_ io.Seeker   = (*lineFile)(nil)
)

func (l *lineFile) Stat() (fs.FileInfo, error) {
	if l.closed {
		return nil, l.closedError("stat")
	}
	return l.info, nil
}

func (l *lineFile) Read(p []byte) (int, error) {
	if l.closed {
		return 0, l.closedError("read")
	}
	if len(p) == 0 {
		return 0, nil
	}
	count, err := l.engine.ReadTarget(l.target, p, l.offset)
	l.offset += int64(count)
	if err != nil {
		return count, err
	}
	if count == 0 {
		return 0, io.EOF
	}
	return count, nil
}

// ReadAt follows the io.ReaderAt contract: a result shorter than p
// comes with io.EOF.
func (l *lineFile) ReadAt(p []byte, off int64) (int, error) {
	if l.closed {
		return 0, l.closedError("read")
	}
	if off < 0 {
		return 0, &fs.PathError{Op: "read", Path: l.info.Name(), Err: ErrInvalidOffset}
	}
	count, err := l.engine.ReadTarget(l.target, p, off)
	if err != nil {
		return count, err
	}
	if count < len(p) {
		return count, io.EOF
	}
	return count, nil
}

func (l *lineFile) Seek(offset int64, whence int) (int64, error) {
	if l.closed {
		return 0, l.closedError("seek")
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += l.offset
	case io.SeekEnd:
		offset += l.info.Size()
	default:
		return 0, &fs.PathError{Op: "seek", Path: l.info.Name(), Err: fs.ErrInvalid}
	}
	if offset < 0 {
		return 0, &fs.PathError{Op: "seek", Path: l.info.Name(), Err: ErrInvalidOffset}
	}
	l.offset = offset
	return offset, nil
}

func (l *lineFile) Close() error {
	if l.closed {
		return l.closedError("close")
	}
	l.closed = true
	return nil
}

func (l *lineFile) closedError(op string) error {
	return &fs.PathError{Op: op, Path: l.info.Name(), Err: fs.ErrClosed}
}

// dirFile is the open root directory. ReadDir walks the lines in
// numeric order, resuming where the previous call stopped.
type dirFile struct {
	engine *Engine
	info   *fileInfo
	next   int
	closed bool
}

var _ fs.ReadDirFile = (*dirFile)(nil)

func (d *dirFile) Stat() (fs.FileInfo, error) {
	if d.closed {
		return nil, &fs.PathError{Op: "stat", Path: ".", Err: fs.ErrClosed}
	}
	return d.info, nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: ErrIsDirectory}
}

func (d *dirFile) ReadDir(count int) ([]fs.DirEntry, error) {
	if d.closed {
		return nil, &fs.PathError{Op: "readdir", Path: ".", Err: fs.ErrClosed}
	}
	remaining := d.engine.Len() - d.next
	if count > 0 && remaining == 0 {
		return nil, io.EOF
	}
	if count <= 0 || count > remaining {
		count = remaining
	}

	entries := make([]fs.DirEntry, 0, count)
	for position := d.next; position < d.next+count; position++ {
		info := &fileInfo{attr: d.engine.TargetAttributes(Target{number: position + 1})}
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	d.next += count
	return entries, nil
}

func (d *dirFile) Close() error {
	if d.closed {
		return &fs.PathError{Op: "close", Path: ".", Err: fs.ErrClosed}
	}
	d.closed = true
	return nil
}
