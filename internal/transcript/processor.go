// Package transcript renders a newline-delimited JSON agent session stream
// (tool calls, tool results, assistant text and the final result) as a
// human-readable transcript.
//
// Each input line is handled on its own: it is decoded, classified, rendered
// and written before the next line is read. Lines that fail to decode or do
// not have the expected shape are dropped without any transcript output.
package transcript

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/harrison/streamfmt/internal/logger"
)

// maxLineSize bounds a single input line. Longer lines are skipped.
const maxLineSize = 10 * 1024 * 1024

// Stats counts what happened to the input lines of a run.
type Stats struct {
	Lines     int // Non-empty lines read
	Rendered  int // Records that produced output
	Silent    int // Recognized or unrecognized records that produced no output
	Malformed int // Lines that were not JSON objects
	Skipped   int // Records dropped because of their shape
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Rendered += o.Rendered
	s.Silent += o.Silent
	s.Malformed += o.Malformed
	s.Skipped += o.Skipped
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("lines: %d, rendered: %d, silent: %d, malformed: %d, skipped: %d",
		s.Lines, s.Rendered, s.Silent, s.Malformed, s.Skipped)
}

// Processor reads a record stream and writes the transcript.
type Processor struct {
	renderer *Renderer
	logger   *slog.Logger
	maxLine  int
}

// NewProcessor creates a Processor. A nil logger discards diagnostics.
func NewProcessor(opts Options, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Processor{
		renderer: NewRenderer(opts),
		logger:   log,
		maxLine:  maxLineSize,
	}
}

// ProcessLine renders a single input line to w. The returned Stats describe
// that one line. Only write errors are returned; bad input never is.
func (p *Processor) ProcessLine(w io.Writer, line []byte, lineNo int) (Stats, error) {
	var st Stats
	if len(line) == 0 {
		return st, nil
	}
	st.Lines = 1

	rec, err := DecodeRecord(line)
	if err != nil {
		p.logger.Debug("skipping non-JSON line", "line", lineNo, "error", err)
		p.logger.Log(context.Background(), logger.LevelTrace, "dropped line", "line", lineNo, "text", preview(line))
		st.Malformed = 1
		return st, nil
	}

	var cw countingWriter
	cw.w = w
	kind, err := p.renderer.Render(&cw, rec)
	switch {
	case errors.Is(err, errShape):
		p.logger.Debug("skipping record", "line", lineNo, "kind", kind.String(), "error", err)
		p.logger.Log(context.Background(), logger.LevelTrace, "dropped line", "line", lineNo, "text", preview(line))
		st.Skipped = 1
	case err != nil:
		return st, err
	case cw.n > 0:
		st.Rendered = 1
	default:
		p.logger.Debug("record produced no output", "line", lineNo, "type", rec.Type, "kind", kind.String())
		st.Silent = 1
	}
	return st, nil
}

// Process renders every line of r to w until r is exhausted or ctx is done.
// A line longer than the line limit is dropped and counted as malformed.
func (p *Processor) Process(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var total Stats

	lr := newLineReader(r, p.maxLine)
	lineNo := 0
	for {
		line, tooLong, err := lr.next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("reading input: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		lineNo++

		if tooLong {
			p.logger.Debug("skipping oversized line", "line", lineNo, "limit", p.maxLine)
			total.Add(Stats{Lines: 1, Malformed: 1})
			continue
		}

		st, err := p.ProcessLine(w, line, lineNo)
		total.Add(st)
		if err != nil {
			return total, err
		}
	}
}

// lineReader splits a stream into lines without a trailing "\n" or "\r\n".
// Lines above limit bytes are discarded up to their newline.
type lineReader struct {
	br    *bufio.Reader
	limit int
	buf   []byte
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64*1024), limit: limit}
}

// next returns the next line. tooLong is set, with a nil line, when the line
// exceeded the limit. io.EOF is returned only once no data is left.
func (lr *lineReader) next() (line []byte, tooLong bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			if len(lr.buf)+len(chunk) > lr.limit+2 {
				tooLong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}

		switch {
		case err == nil:
			// Complete line.
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return nil, false, io.EOF
			}
		default:
			return nil, false, err
		}
		break
	}

	if tooLong {
		return nil, true, nil
	}
	line = bytes.TrimSuffix(lr.buf, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > lr.limit {
		return nil, true, nil
	}
	return line, false, nil
}

// preview shortens a dropped line for trace logs.
func preview(line []byte) string {
	const n = 200
	if len(line) <= n {
		return string(line)
	}
	return string(line[:n]) + "..."
}

// countingWriter records whether anything reached the underlying writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += n
	return n, err
}
