// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lineindex

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// chunkSize is the read size used while scanning.
const chunkSize = 64 * 1024

// Record locates one line within the source.
type Record struct {
	// Offset is the byte position of the line's first byte.
	Offset int64

	// Length is the number of bytes in the line, including its
	// terminating newline when it has one.
	Length int64
}

// End returns the offset one past the line's last byte.
func (r Record) End() int64 { return r.Offset + r.Length }

// Options bounds the index. The zero value imposes no bounds.
type Options struct {
	// MaxLines caps the number of records. Zero means unbounded.
	MaxLines int

	// MaxLineLength is the largest record length. Longer lines are
	// split into several records. Zero means unbounded.
	MaxLineLength int64
}

// Index is the immutable result of Build. It is safe for concurrent
// use.
type Index struct {
	records   []Record
	size      int64
	truncated bool
	digest    [32]byte
}

// Build scans reader to end of input, or until options.MaxLines
// records exist, and returns the resulting index. The reader is
// consumed; nothing else about the source is touched.
func Build(reader io.Reader, options Options) (*Index, error) {
	if options.MaxLines < 0 {
		return nil, fmt.Errorf("max lines must not be negative, got %d", options.MaxLines)
	}
	if options.MaxLineLength < 0 {
		return nil, fmt.Errorf("max line length must not be negative, got %d", options.MaxLineLength)
	}

	scanner := &scanner{
		options: options,
		hasher:  blake3.New(),
	}
	buffer := make([]byte, chunkSize)

	truncated := false
	for {
		count, err := reader.Read(buffer)
		if count > 0 {
			chunk := buffer[:count]
			consumed := scanner.scan(chunk)
			scanner.hasher.Write(chunk[:consumed])
			if scanner.full() {
				if consumed < count {
					truncated = true
				} else {
					more, moreErr := hasMore(reader, buffer)
					if moreErr != nil {
						return nil, fmt.Errorf("reading source at offset %d: %w", scanner.position, moreErr)
					}
					truncated = more
				}
				break
			}
		}
		if errors.Is(err, io.EOF) {
			scanner.finish()
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading source at offset %d: %w", scanner.position, err)
		}
	}

	index := &Index{
		records:   scanner.records,
		size:      scanner.lineStart,
		truncated: truncated,
	}
	copy(index.digest[:], scanner.hasher.Sum(nil))
	return index, nil
}

// hasMore reports whether reader has at least one more byte.
func hasMore(reader io.Reader, buffer []byte) (bool, error) {
	for {
		count, err := reader.Read(buffer[:1])
		if count > 0 {
			return true, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// scanner accumulates records across chunks. Bytes between lineStart
// and position belong to a line whose end has not been seen yet.
type scanner struct {
	options Options
	records []Record
	hasher  *blake3.Hasher

	// position is the absolute offset of the next byte to scan.
	position int64

	// lineStart is the offset where the next record will begin. It
	// always equals the end of the last record.
	lineStart int64
}

func (s *scanner) full() bool {
	return s.options.MaxLines > 0 && len(s.records) >= s.options.MaxLines
}

// scan processes one chunk and returns how many of its bytes are
// covered by records or still pending. That is len(chunk) unless the
// capacity was reached inside the chunk, in which case it is the
// distance to the end of the last record.
func (s *scanner) scan(chunk []byte) int {
	chunkStart := s.position
	offset := 0
	for offset < len(chunk) && !s.full() {
		newline := bytes.IndexByte(chunk[offset:], '\n')
		if newline < 0 {
			s.position = chunkStart + int64(len(chunk))
			s.splitPending()
			break
		}
		offset += newline + 1
		s.position = chunkStart + int64(offset)
		s.emitLine(s.position)
	}

	if s.full() {
		// Pieces are emitted as soon as they are complete, so the last
		// record always ends inside the current chunk.
		return int(s.lineStart - chunkStart)
	}
	return len(chunk)
}

// emitLine records the line ending at end, split as MaxLineLength
// requires.
func (s *scanner) emitLine(end int64) {
	limit := s.options.MaxLineLength
	for limit > 0 && end-s.lineStart > limit {
		if !s.add(limit) {
			return
		}
	}
	s.add(end - s.lineStart)
}

// splitPending emits full-length pieces of an unterminated line as
// soon as more than MaxLineLength bytes of it have been seen. The
// remaining piece waits for the terminator or end of input.
func (s *scanner) splitPending() {
	limit := s.options.MaxLineLength
	for limit > 0 && s.position-s.lineStart > limit {
		if !s.add(limit) {
			return
		}
	}
}

// finish records a final line that has no terminator.
func (s *scanner) finish() {
	if s.position > s.lineStart {
		s.emitLine(s.position)
	}
}

func (s *scanner) add(length int64) bool {
	if s.full() {
		return false
	}
	s.records = append(s.records, Record{Offset: s.lineStart, Length: length})
	s.lineStart += length
	return true
}

// Len returns the number of lines.
func (i *Index) Len() int { return len(i.records) }

// Record returns the record at position (0-based). The second result
// is false when position is out of range.
func (i *Index) Record(position int) (Record, bool) {
	if position < 0 || position >= len(i.records) {
		return Record{}, false
	}
	return i.records[position], true
}

// Records returns a copy of every record in order.
func (i *Index) Records() []Record {
	out := make([]Record, len(i.records))
	copy(out, i.records)
	return out
}

// Size returns the number of source bytes covered by the records.
func (i *Index) Size() int64 { return i.size }

// Truncated reports whether MaxLines stopped the scan before the end
// of input.
func (i *Index) Truncated() bool { return i.truncated }

// Digest returns the BLAKE3-256 hash of the bytes covered by the
// records.
func (i *Index) Digest() [32]byte { return i.digest }

// DigestHex returns Digest as lowercase hex.
func (i *Index) DigestHex() string { return hex.EncodeToString(i.digest[:]) }

// Validate checks the index against the size of the source it was
// built from. Offsets must start at zero and increase, records must be
// non-empty and contiguous, and no record may extend past sourceSize.
// An untruncated index must cover the source exactly.
func (i *Index) Validate(sourceSize int64) error {
	var next int64
	for position, record := range i.records {
		if record.Offset != next {
			return fmt.Errorf("line %d: offset %d, want %d", position+1, record.Offset, next)
		}
		if record.Length <= 0 {
			return fmt.Errorf("line %d: non-positive length %d", position+1, record.Length)
		}
		next = record.End()
		if next > sourceSize {
			return fmt.Errorf("line %d: ends at %d, past source size %d", position+1, next, sourceSize)
		}
	}
	if next != i.size {
		return fmt.Errorf("records cover %d bytes, index reports %d", next, i.size)
	}
	if !i.truncated && i.size != sourceSize {
		return fmt.Errorf("index covers %d of %d source bytes but is not truncated", i.size, sourceSize)
	}
	return nil
}
