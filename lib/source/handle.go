// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
)

// Backend selects how a Handle performs random-access reads.
type Backend string

const (
	// BackendPread reads with pread(2).
	BackendPread Backend = "pread"

	// BackendMmap reads from a read-only memory map.
	BackendMmap Backend = "mmap"
)

// DefaultMaxInterruptRetries is the number of consecutive EINTR results
// a single pread loop tolerates before giving up.
const DefaultMaxInterruptRetries = 64

var (
	// ErrInterrupted is returned when a read is interrupted more times
	// in a row than the handle allows.
	ErrInterrupted = errors.New("source: read interrupted too many times")

	// ErrNotRegular is returned by Open when the path is not a
	// regular file.
	ErrNotRegular = errors.New("source: not a regular file")
)

// Options configures Open.
type Options struct {
	// Backend selects the random-access implementation. Empty means
	// BackendPread.
	Backend Backend

	// MaxInterruptRetries bounds consecutive EINTR retries in the
	// pread backend. Zero uses DefaultMaxInterruptRetries.
	MaxInterruptRetries int
}

// preadFunc matches unix.Pread. Tests substitute it to simulate
// interrupted and short reads.
type preadFunc func(fd int, p []byte, offset int64) (int, error)

// Handle is an open, read-only source file. It is safe for concurrent
// use by multiple goroutines after Open returns.
type Handle struct {
	path    string
	backend Backend
	info    fs.FileInfo
	size    int64

	// file and fd are set for BackendPread. The *os.File keeps the
	// descriptor alive and owns closing it.
	file *os.File
	fd   int

	// mapped is set for BackendMmap.
	mapped *mmap.ReaderAt

	pread               preadFunc
	maxInterruptRetries int
}

// Open opens path read-only with the requested backend. The size and
// modification time observed here are the ones the handle reports for
// its lifetime.
func Open(path string, options Options) (*Handle, error) {
	if options.Backend == "" {
		options.Backend = BackendPread
	}
	if options.MaxInterruptRetries == 0 {
		options.MaxInterruptRetries = DefaultMaxInterruptRetries
	}
	if options.MaxInterruptRetries < 0 {
		return nil, fmt.Errorf("max interrupt retries must not be negative, got %d", options.MaxInterruptRetries)
	}

	handle := &Handle{
		path:                path,
		backend:             options.Backend,
		fd:                  -1,
		pread:               unix.Pread,
		maxInterruptRetries: options.MaxInterruptRetries,
	}

	switch options.Backend {
	case BackendPread:
		if err := handle.openPread(); err != nil {
			return nil, err
		}
	case BackendMmap:
		if err := handle.openMmap(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown source backend %q (want %q or %q)", options.Backend, BackendPread, BackendMmap)
	}

	return handle, nil
}

func (h *Handle) openPread() error {
	file, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stating source %s: %w", h.path, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return fmt.Errorf("%s: %w (mode %s)", h.path, ErrNotRegular, info.Mode())
	}

	h.file = file
	h.fd = int(file.Fd())
	h.info = info
	h.size = info.Size()
	return nil
}

func (h *Handle) openMmap() error {
	info, err := os.Stat(h.path)
	if err != nil {
		return fmt.Errorf("stating source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w (mode %s)", h.path, ErrNotRegular, info.Mode())
	}

	mapped, err := mmap.Open(h.path)
	if err != nil {
		return fmt.Errorf("memory-mapping source %s: %w", h.path, err)
	}

	h.mapped = mapped
	h.info = info
	// The mapping length is authoritative: it is what ReadAt can serve.
	h.size = int64(mapped.Len())
	return nil
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// Backend returns the random-access backend in use.
func (h *Handle) Backend() Backend { return h.backend }

// Size returns the file size in bytes observed at open.
func (h *Handle) Size() int64 { return h.size }

// ModTime returns the modification time observed at open.
func (h *Handle) ModTime() time.Time { return h.info.ModTime() }

// NewReader returns a sequential reader over the whole file as it was
// sized at open. Each call starts again at offset 0. The reader is
// built on ReadAt, so it keeps its own cursor and is independent of
// every other reader.
func (h *Handle) NewReader() io.Reader {
	return io.NewSectionReader(h, 0, h.size)
}

// ReadAt implements io.ReaderAt. It fills p completely unless end of
// file is reached (io.EOF) or the read fails.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &fs.PathError{Op: "read", Path: h.path, Err: fs.ErrInvalid}
	}
	if h.mapped != nil {
		return h.mapped.ReadAt(p, off)
	}
	return h.readFull(p, off)
}

// readFull loops over pread until p is full. Each EINTR is retried in
// place; the counter resets whenever a call makes progress so a slow
// but advancing read is never cut off.
func (h *Handle) readFull(p []byte, off int64) (int, error) {
	total := 0
	interrupts := 0
	for total < len(p) {
		count, err := h.pread(h.fd, p[total:], off+int64(total))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				interrupts++
				if interrupts > h.maxInterruptRetries {
					return total, fmt.Errorf("reading %s at offset %d: %w (%d consecutive EINTR)",
						h.path, off+int64(total), ErrInterrupted, interrupts)
				}
				continue
			}
			return total, &fs.PathError{Op: "pread", Path: h.path, Err: err}
		}
		if count == 0 {
			return total, io.EOF
		}
		interrupts = 0
		total += count
	}
	return total, nil
}

// Changed reports whether the file at the handle's path no longer
// matches what was opened: a different size, a different modification
// time, or a different file altogether (replaced by rename).
func (h *Handle) Changed() (bool, error) {
	current, err := os.Stat(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("stating source %s: %w", h.path, err)
	}
	if !os.SameFile(h.info, current) {
		return true, nil
	}
	return current.Size() != h.info.Size() || !current.ModTime().Equal(h.info.ModTime()), nil
}

// Close releases the descriptor or memory map.
func (h *Handle) Close() error {
	if h.mapped != nil {
		return h.mapped.Close()
	}
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}
