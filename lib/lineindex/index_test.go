// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lineindex

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/zeebo/blake3"
)

// build indexes content and validates the result against it.
func build(t *testing.T, content string, options Options) *Index {
	t.Helper()
	index, err := Build(strings.NewReader(content), options)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := index.Validate(int64(len(content))); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return index
}

// lines returns the text of every record in index.
func lines(index *Index, content string) []string {
	var out []string
	for _, record := range index.Records() {
		out = append(out, content[record.Offset:record.End()])
	}
	return out
}

func equalLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %q, want %d lines %q", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestBuildBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"empty", "", nil},
		{"two lines", "ab\ncde\n", []string{"ab\n", "cde\n"}},
		{"no final newline", "ab\ncde", []string{"ab\n", "cde"}},
		{"only newline", "\n", []string{"\n"}},
		{"blank lines", "\n\n\n", []string{"\n", "\n", "\n"}},
		{"single unterminated", "x", []string{"x"}},
		{"crlf is content", "a\r\nb\r\n", []string{"a\r\n", "b\r\n"}},
		{"nul is content", "a\x00b\n\x00\n", []string{"a\x00b\n", "\x00\n"}},
		{"bare carriage return", "a\rb\n", []string{"a\rb\n"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			index := build(t, test.content, Options{})
			equalLines(t, lines(index, test.content), test.want)
			if index.Truncated() {
				t.Error("unbounded index reports truncation")
			}
			if index.Size() != int64(len(test.content)) {
				t.Errorf("Size() = %d, want %d", index.Size(), len(test.content))
			}
		})
	}
}

func TestBuildScenarioRecords(t *testing.T) {
	index := build(t, "ab\ncde\n", Options{})
	want := []Record{{Offset: 0, Length: 3}, {Offset: 3, Length: 4}}
	got := index.Records()
	if len(got) != len(want) {
		t.Fatalf("Records() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, ok := index.Record(2); ok {
		t.Error("Record(2) should be out of range")
	}
	if _, ok := index.Record(-1); ok {
		t.Error("Record(-1) should be out of range")
	}
	if record, ok := index.Record(1); !ok || record.End() != 7 {
		t.Errorf("Record(1) = %+v, %v", record, ok)
	}
}

func TestBuildRecordsIsACopy(t *testing.T) {
	index := build(t, "a\nb\n", Options{})
	records := index.Records()
	records[0].Length = 99
	if record, _ := index.Record(0); record.Length != 2 {
		t.Error("mutating Records() changed the index")
	}
}

func TestBuildMaxLines(t *testing.T) {
	content := "1\n2\n3\n4\n5\n"

	index := build(t, content, Options{MaxLines: 3})
	equalLines(t, lines(index, content), []string{"1\n", "2\n", "3\n"})
	if !index.Truncated() {
		t.Error("expected Truncated() after capacity was reached")
	}
	if index.Size() != 6 {
		t.Errorf("Size() = %d, want 6", index.Size())
	}

	// Exactly at capacity: nothing left over, so no truncation.
	index = build(t, content, Options{MaxLines: 5})
	if index.Len() != 5 || index.Truncated() {
		t.Errorf("Len()=%d Truncated()=%v, want 5 false", index.Len(), index.Truncated())
	}

	// An unterminated tail counts as left over.
	index = build(t, "1\n2", Options{MaxLines: 1})
	if index.Len() != 1 || !index.Truncated() {
		t.Errorf("Len()=%d Truncated()=%v, want 1 true", index.Len(), index.Truncated())
	}
}

func TestBuildMaxLinesAcrossChunkBoundary(t *testing.T) {
	// The capacity is reached exactly at the end of the first chunk;
	// truncation must still be detected from the following chunk.
	line := strings.Repeat("x", chunkSize-1) + "\n"
	content := line + "tail\n"
	index := build(t, content, Options{MaxLines: 1})
	if index.Len() != 1 || !index.Truncated() {
		t.Fatalf("Len()=%d Truncated()=%v, want 1 true", index.Len(), index.Truncated())
	}
	if index.Digest() != blake3.Sum256([]byte(line)) {
		t.Error("digest does not cover exactly the indexed line")
	}
}

func TestBuildMaxLineLength(t *testing.T) {
	tests := []struct {
		name    string
		content string
		limit   int64
		want    []string
	}{
		{"fits exactly", "abc\n", 4, []string{"abc\n"}},
		{"terminator spills", "abcd\n", 4, []string{"abcd", "\n"}},
		{"several pieces", "abcdefghij\nk\n", 4, []string{"abcd", "efgh", "ij\n", "k\n"}},
		{"unterminated tail", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"limit one", "ab\n", 1, []string{"a", "b", "\n"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			index := build(t, test.content, Options{MaxLineLength: test.limit})
			equalLines(t, lines(index, test.content), test.want)
			for _, record := range index.Records() {
				if record.Length > test.limit {
					t.Errorf("record %+v exceeds limit %d", record, test.limit)
				}
			}
		})
	}
}

func TestBuildLongLineAcrossChunks(t *testing.T) {
	// A line several chunks long, split by a limit that does not
	// divide the chunk size.
	const limit = 1000
	long := strings.Repeat("y", 3*chunkSize+17)
	content := "head\n" + long + "\nend"

	index := build(t, content, Options{MaxLineLength: limit})
	got := lines(index, content)
	if got[0] != "head\n" || got[len(got)-1] != "end" {
		t.Fatalf("unexpected first/last lines %q %q", got[0], got[len(got)-1])
	}
	joined := strings.Join(got[1:len(got)-1], "")
	if joined != long+"\n" {
		t.Error("pieces of the long line do not reassemble it")
	}
	for _, piece := range got[1 : len(got)-2] {
		if len(piece) != limit {
			t.Fatalf("interior piece has length %d, want %d", len(piece), limit)
		}
	}
}

func TestBuildMaxLinesWithSplitting(t *testing.T) {
	// Capacity reached in the middle of a split line.
	content := strings.Repeat("z", 10) + "\n"
	index := build(t, content, Options{MaxLines: 2, MaxLineLength: 3})
	equalLines(t, lines(index, content), []string{"zzz", "zzz"})
	if !index.Truncated() {
		t.Error("expected truncation")
	}
	if index.Digest() != blake3.Sum256([]byte("zzzzzz")) {
		t.Error("digest does not match covered bytes")
	}
}

func TestBuildMatchesNaiveSplitOnRandomInput(t *testing.T) {
	random := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		var content bytes.Buffer
		size := random.Intn(3 * chunkSize)
		for content.Len() < size {
			if random.Intn(40) == 0 {
				content.WriteByte('\n')
			} else {
				content.WriteByte(byte(random.Intn(256)))
			}
		}

		text := content.String()
		want := strings.SplitAfter(text, "\n")
		if len(want) > 0 && want[len(want)-1] == "" {
			want = want[:len(want)-1]
		}

		// One-byte reads exercise every chunk boundary position.
		reader := iotest.OneByteReader(strings.NewReader(text))
		if trial%2 == 0 {
			reader = strings.NewReader(text)
		}
		index, err := Build(reader, Options{})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if err := index.Validate(int64(len(text))); err != nil {
			t.Fatalf("trial %d: Validate: %v", trial, err)
		}
		equalLines(t, lines(index, text), want)
		if index.Digest() != blake3.Sum256(content.Bytes()) {
			t.Fatalf("trial %d: digest mismatch", trial)
		}
	}
}

func TestBuildDigestHex(t *testing.T) {
	index := build(t, "ab\ncde\n", Options{})
	sum := blake3.Sum256([]byte("ab\ncde\n"))
	if index.Digest() != sum {
		t.Error("Digest() does not match BLAKE3 of the content")
	}
	if len(index.DigestHex()) != 64 {
		t.Errorf("DigestHex() = %q, want 64 hex characters", index.DigestHex())
	}
}

func TestBuildReadError(t *testing.T) {
	failure := errors.New("disk on fire")
	reader := io.MultiReader(strings.NewReader("ok\n"), iotest.ErrReader(failure))
	_, err := Build(reader, Options{})
	if !errors.Is(err, failure) {
		t.Fatalf("Build error = %v, want %v", err, failure)
	}
}

func TestBuildRejectsNegativeOptions(t *testing.T) {
	if _, err := Build(strings.NewReader(""), Options{MaxLines: -1}); err == nil {
		t.Error("expected error for negative MaxLines")
	}
	if _, err := Build(strings.NewReader(""), Options{MaxLineLength: -1}); err == nil {
		t.Error("expected error for negative MaxLineLength")
	}
}

func TestValidateDetectsInconsistency(t *testing.T) {
	tests := []struct {
		name  string
		index *Index
		size  int64
	}{
		{"gap", &Index{records: []Record{{0, 2}, {3, 1}}, size: 4}, 4},
		{"empty record", &Index{records: []Record{{0, 0}}, size: 0}, 0},
		{"past end", &Index{records: []Record{{0, 5}}, size: 5}, 4},
		{"short cover", &Index{records: []Record{{0, 2}}, size: 2}, 4},
		{"size mismatch", &Index{records: []Record{{0, 2}}, size: 1}, 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.index.Validate(test.size); err == nil {
				t.Error("Validate accepted an inconsistent index")
			}
		})
	}

	truncated := &Index{records: []Record{{0, 2}}, size: 2, truncated: true}
	if err := truncated.Validate(4); err != nil {
		t.Errorf("Validate rejected a truncated prefix: %v", err)
	}
}
