package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// DividerLength is the width of the lines framing assistant and result blocks.
const DividerLength = 50

// Literal markers of the transcript format.
const (
	toolCallHeader    = "▶️  Tool Call: "
	toolResultHeader  = "◀️  Tool Result:"
	assistantHeader   = "🤖 Assistant Message:"
	finalResultHeader = "🏁 Final Result:"
	statusError       = "❌ ERROR"
	statusSuccess     = "✅ SUCCESS"
	callContentPrefix = "     > "
	resultLinePrefix  = "     | "
	fieldIndent       = "   "
)

// Options configures transcript rendering.
type Options struct {
	ColorOutput bool // Enable ANSI color codes
}

// DefaultOptions returns plain-text rendering options.
func DefaultOptions() Options {
	return Options{ColorOutput: false}
}

// styles groups the colors applied to transcript elements.
type styles struct {
	header  *color.Color
	label   *color.Color
	marker  *color.Color
	divider *color.Color
	success *color.Color
	fail    *color.Color
	result  *color.Color
}

// newStyles builds the color scheme. The caller decides whether to color, so
// fatih/color's own detection for os.Stdout is overridden either way.
func newStyles(enabled bool) *styles {
	s := &styles{
		header:  color.New(color.FgCyan, color.Bold),
		label:   color.New(color.FgCyan),
		marker:  color.New(color.Faint),
		divider: color.New(color.FgHiBlack),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed, color.Bold),
		result:  color.New(color.FgYellow, color.Bold),
	}
	for _, c := range []*color.Color{s.header, s.label, s.marker, s.divider, s.success, s.fail, s.result} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Renderer turns classified records into transcript text.
type Renderer struct {
	style *styles
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{style: newStyles(opts.ColorOutput)}
}

// Render classifies rec and writes its transcript block to w. Nothing is
// written when the record has the wrong shape: the block is built in memory
// and only flushed once it is complete.
func (r *Renderer) Render(w io.Writer, rec *Record) (Kind, error) {
	kind := Classify(rec)

	var buf bytes.Buffer
	var err error
	switch kind {
	case KindToolCall:
		err = r.renderToolCall(&buf, rec)
	case KindToolResult:
		err = r.renderToolResult(&buf, rec)
	case KindAssistantText:
		err = r.renderAssistantText(&buf, rec)
	case KindFinalResult:
		err = r.renderFinalResult(&buf, rec)
	default:
		return kind, nil
	}
	if err != nil {
		return kind, err
	}

	if buf.Len() == 0 {
		return kind, nil
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return kind, fmt.Errorf("write transcript: %w", err)
	}
	return kind, nil
}

// renderToolCall writes the first tool_use item of rec.
func (r *Renderer) renderToolCall(buf *bytes.Buffer, rec *Record) error {
	item, ok := rec.FirstItem(ItemToolUse)
	if !ok {
		return fmt.Errorf("%w: no tool_use item", errShape)
	}
	if err := item.Err(); err != nil {
		return err
	}
	input, err := item.ToolInput()
	if err != nil {
		return err
	}

	buf.WriteString("\n")
	r.line(buf, r.style.header.Sprint(toolCallHeader+item.Name))

	if v, ok := input.Field("command"); ok {
		r.field(buf, "Command", v)
	}
	if v, ok := input.Field("description"); ok {
		r.field(buf, "Description", v)
	}
	if v, ok := input.Field("file_path"); ok {
		r.field(buf, "File", v)
	}
	if v, ok := input.Field("content"); ok {
		r.line(buf, fieldIndent+r.style.label.Sprint("Content:")+" ")
		r.block(buf, callContentPrefix, Truncate(v))
	}
	return nil
}

// renderToolResult writes the status and output of the first tool_result item.
func (r *Renderer) renderToolResult(buf *bytes.Buffer, rec *Record) error {
	item, ok := rec.FirstItem(ItemToolResult)
	if !ok {
		return fmt.Errorf("%w: no tool_result item", errShape)
	}
	if err := item.Err(); err != nil {
		return err
	}
	output, hasOutput, err := item.ResultText()
	if err != nil {
		return err
	}

	buf.WriteString("\n")
	r.line(buf, r.style.header.Sprint(toolResultHeader))

	status := r.style.success.Sprint(statusSuccess)
	if item.Failed() {
		status = r.style.fail.Sprint(statusError)
	}
	r.line(buf, fieldIndent+r.style.label.Sprint("Status:")+" "+status)

	if hasOutput {
		r.line(buf, fieldIndent+r.style.label.Sprint("Output:")+" ")
		r.block(buf, resultLinePrefix, Truncate(strings.TrimSpace(output)))
	}
	return nil
}

// renderAssistantText writes the first text item. Whitespace-only text is
// skipped entirely.
func (r *Renderer) renderAssistantText(buf *bytes.Buffer, rec *Record) error {
	item, ok := rec.FirstItem(ItemText)
	if !ok {
		return fmt.Errorf("%w: no text item", errShape)
	}
	if err := item.Err(); err != nil {
		return err
	}
	if item.Text == nil || strings.TrimSpace(*item.Text) == "" {
		return nil
	}

	r.divider(buf, "=")
	buf.WriteString("\n")
	r.line(buf, r.style.header.Sprint(assistantHeader))
	r.line(buf, fieldIndent+*item.Text)
	r.divider(buf, "=")
	return nil
}

// renderFinalResult writes the session summary. Only successful results are
// shown.
func (r *Renderer) renderFinalResult(buf *bytes.Buffer, rec *Record) error {
	if !rec.IsSuccess() {
		return nil
	}
	sum, err := rec.Summary()
	if err != nil {
		return err
	}

	r.divider(buf, "*")
	buf.WriteString("\n")
	r.line(buf, r.style.result.Sprint(finalResultHeader))
	r.line(buf, fieldIndent+sum.Result)
	r.line(buf, fmt.Sprintf("%sTurns: %s, Duration: %sms, Cost: $%s",
		fieldIndent, sum.NumTurns, sum.DurationMS, toFixed(sum.TotalCostUSD, 6)))
	r.divider(buf, "*")
	return nil
}

func (r *Renderer) line(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteString("\n")
}

func (r *Renderer) field(buf *bytes.Buffer, name, value string) {
	r.line(buf, fieldIndent+r.style.label.Sprint(name+":")+" "+value)
}

// block writes every line of content behind prefix.
func (r *Renderer) block(buf *bytes.Buffer, prefix, content string) {
	for _, l := range strings.Split(content, "\n") {
		r.line(buf, r.style.marker.Sprint(prefix)+l)
	}
}

func (r *Renderer) divider(buf *bytes.Buffer, ch string) {
	r.line(buf, r.style.divider.Sprint(strings.Repeat(ch, DividerLength)))
}
