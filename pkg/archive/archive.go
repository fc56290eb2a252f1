// Package archive holds the write-once output container every tool delivers:
// a mapping from relative paths to file bytes, serialized as a ZIP.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel is the deflate level used for delivered archives.
const DefaultLevel = 6

// entryTime is stamped on every entry so identical input yields identical bytes.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Archive maps relative paths to bytes. It is owned by a single job and is not
// safe for concurrent writers.
type Archive struct {
	entries map[string][]byte
	order   []string
	level   int
}

// New creates an empty archive compressed at DefaultLevel.
func New() *Archive {
	return NewWithLevel(DefaultLevel)
}

// NewWithLevel creates an empty archive compressed at the given deflate level.
func NewWithLevel(level int) *Archive {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = DefaultLevel
	}
	return &Archive{
		entries: make(map[string][]byte),
		level:   level,
	}
}

// Put stores data at path. Writing to an existing path replaces its bytes and
// keeps its original position; callers are responsible for avoiding that.
func (a *Archive) Put(path string, data []byte) {
	if _, ok := a.entries[path]; !ok {
		a.order = append(a.order, path)
	}
	a.entries[path] = data
}

// Has reports whether path has been written.
func (a *Archive) Has(path string) bool {
	_, ok := a.entries[path]
	return ok
}

// Get returns the bytes stored at path.
func (a *Archive) Get(path string) ([]byte, bool) {
	data, ok := a.entries[path]
	return data, ok
}

// Paths returns the stored paths in insertion order.
func (a *Archive) Paths() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of stored entries.
func (a *Archive) Len() int {
	return len(a.order)
}

// Write serializes the archive as a ZIP, entries in insertion order.
func (a *Archive) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	for _, path := range a.order {
		header := &zip.FileHeader{
			Name:     path,
			Method:   zip.Deflate,
			Modified: entryTime,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry %s: %w", path, err)
		}
		if _, err := fw.Write(a.entries[path]); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// Bytes returns the serialized ZIP.
func (a *Archive) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
