// Package source opens the record streams streamfmt reads: stdin, plain
// JSONL files, and compressed session logs.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Compression identifies how an input file is encoded.
type Compression int

const (
	// None is a plain JSONL file.
	None Compression = iota
	// Gzip is a .gz file.
	Gzip
	// Zstd is a .zst or .zstd file.
	Zstd
	// Brotli is a .br file.
	Brotli
)

// String returns a human-readable name for the compression
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	default:
		return "none"
	}
}

// Detect picks the compression from the file extension.
func Detect(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".br":
		return Brotli
	default:
		return None
	}
}

// Open returns a reader over the decoded records of path. Stdin is returned
// as is and closing it is a no-op.
func Open(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == Stdin {
		return io.NopCloser(stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	rc, err := Decode(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &stackedCloser{ReadCloser: rc, under: f}, nil
}

// Decode wraps r with the decompressor for c.
func Decode(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zr.IOReadCloser(), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

// stackedCloser closes the decoder and then the file beneath it.
type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.under.Close())
}

// MultiReader concatenates several inputs in order, opening each one only
// when the previous is exhausted.
type MultiReader struct {
	paths []string
	stdin io.Reader
	cur   io.ReadCloser
}

// NewMultiReader reads paths in order. An empty list means stdin.
func NewMultiReader(paths []string, stdin io.Reader) *MultiReader {
	if len(paths) == 0 {
		paths = []string{Stdin}
	}
	return &MultiReader{paths: paths, stdin: stdin}
}

// Read implements io.Reader. A file that does not end with a newline is
// terminated with one so its last record does not merge with the next file.
func (m *MultiReader) Read(p []byte) (int, error) {
	for {
		if m.cur == nil {
			if len(m.paths) == 0 {
				return 0, io.EOF
			}
			rc, err := Open(m.paths[0], m.stdin)
			if err != nil {
				return 0, err
			}
			m.paths = m.paths[1:]
			m.cur = &newlineTerminated{r: rc}
		}

		n, err := m.cur.Read(p)
		if err == io.EOF {
			closeErr := m.cur.Close()
			m.cur = nil
			if closeErr != nil {
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Close closes the input currently being read.
func (m *MultiReader) Close() error {
	if m.cur == nil {
		return nil
	}
	err := m.cur.Close()
	m.cur = nil
	return err
}

// newlineTerminated appends a newline at EOF when the stream did not end
// with one.
type newlineTerminated struct {
	r    io.ReadCloser
	last byte
	seen bool
	pad  bool
	done bool
}

func (t *newlineTerminated) Read(p []byte) (int, error) {
	if t.pad {
		if len(p) == 0 {
			return 0, nil
		}
		p[0] = '\n'
		t.pad = false
		t.done = true
		return 1, io.EOF
	}
	if t.done {
		return 0, io.EOF
	}

	n, err := t.r.Read(p)
	if n > 0 {
		t.last = p[n-1]
		t.seen = true
	}
	if err == io.EOF {
		if t.seen && t.last != '\n' {
			if n < len(p) {
				p[n] = '\n'
				t.done = true
				return n + 1, io.EOF
			}
			t.pad = true
			return n, nil
		}
		t.done = true
	}
	return n, err
}

func (t *newlineTerminated) Close() error {
	return t.r.Close()
}
