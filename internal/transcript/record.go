package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Record types recognized by the classifier.
const (
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeResult    = "result"
)

// Content item types.
const (
	ItemToolUse    = "tool_use"
	ItemToolResult = "tool_result"
	ItemText       = "text"
)

// errShape reports a record whose fields do not have the expected shape.
var errShape = errors.New("unexpected record shape")

// Record is one decoded line of the stream. Fields specific to a record kind
// stay raw until the matching renderer asks for them.
type Record struct {
	Type    string          `json:"type"`
	Subtype json.RawMessage `json:"subtype,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`

	// Final result fields.
	Result       json.RawMessage `json:"result,omitempty"`
	NumTurns     json.RawMessage `json:"num_turns,omitempty"`
	DurationMS   json.RawMessage `json:"duration_ms,omitempty"`
	TotalCostUSD json.RawMessage `json:"total_cost_usd,omitempty"`
}

// message is the envelope under Record.Message.
type message struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content"`
}

// ContentItem is one element of message.content.
type ContentItem struct {
	Type string `json:"type"`

	// tool_use
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	Content json.RawMessage `json:"content,omitempty"`
	IsError json.RawMessage `json:"is_error,omitempty"`

	// text
	Text *string `json:"text,omitempty"`

	// malformed is set when the item has a type but its other fields could
	// not be decoded.
	malformed error
}

// ToolInput holds the parameters of a tool_use item. Only the keys the
// renderer knows about are ever looked at.
type ToolInput map[string]json.RawMessage

// ResultSummary is the decoded form of a "result" record.
type ResultSummary struct {
	Result       string
	NumTurns     string
	DurationMS   string
	TotalCostUSD float64
}

// DecodeRecord parses a single line. Anything that is not a JSON object is
// an error.
func DecodeRecord(line []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// Items returns message.content as a list of content items. A missing
// message, or a content value that is not an array, yields no items.
// Array elements that are not objects are ignored.
func (r *Record) Items() []ContentItem {
	if isNull(r.Message) {
		return nil
	}
	var msg message
	if err := json.Unmarshal(r.Message, &msg); err != nil {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(msg.Content, &raw); err != nil {
		return nil
	}
	items := make([]ContentItem, 0, len(raw))
	for _, elem := range raw {
		var item ContentItem
		if err := json.Unmarshal(elem, &item); err != nil {
			var tag struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(elem, &tag) != nil || tag.Type == "" {
				continue
			}
			item = ContentItem{Type: tag.Type, malformed: fmt.Errorf("%w: %s item: %v", errShape, tag.Type, err)}
		}
		items = append(items, item)
	}
	return items
}

// FirstItem returns the first content item of the given type.
func (r *Record) FirstItem(itemType string) (ContentItem, bool) {
	return firstOf(r.Items(), itemType)
}

func firstOf(items []ContentItem, itemType string) (ContentItem, bool) {
	for _, item := range items {
		if item.Type == itemType {
			return item, true
		}
	}
	return ContentItem{}, false
}

// Err returns the decode error of a malformed item.
func (c ContentItem) Err() error {
	return c.malformed
}

// ToolInput decodes the input object of a tool_use item. A missing or null
// input is an empty map.
func (c ContentItem) ToolInput() (ToolInput, error) {
	in := ToolInput{}
	if isNull(c.Input) {
		return in, nil
	}
	if err := json.Unmarshal(c.Input, &in); err != nil {
		return nil, fmt.Errorf("%w: tool input: %v", errShape, err)
	}
	return in, nil
}

// Field returns the display form of key and whether it is truthy.
func (in ToolInput) Field(key string) (string, bool) {
	raw, ok := in[key]
	if !ok || !truthy(raw) {
		return "", false
	}
	return displayValue(raw), true
}

// Failed reports whether is_error is truthy.
func (c ContentItem) Failed() bool {
	return truthy(c.IsError)
}

// ResultText flattens the content of a tool_result item. Claude writes it
// either as a string or as a list of text blocks.
func (c ContentItem) ResultText() (string, bool, error) {
	if !truthy(c.Content) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(c.Content, &s); err == nil {
		return s, true, nil
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(c.Content, &blocks); err != nil {
		return "", false, fmt.Errorf("%w: tool result content: %v", errShape, err)
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == ItemText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n"), true, nil
}

// Summary decodes the final result fields. The counters and the cost must be
// present; the cost must be a number.
func (r *Record) Summary() (ResultSummary, error) {
	var s ResultSummary
	if !isNull(r.Result) {
		s.Result = displayValue(r.Result)
	}
	if isNull(r.NumTurns) || isNull(r.DurationMS) || isNull(r.TotalCostUSD) {
		return s, fmt.Errorf("%w: result statistics missing", errShape)
	}
	s.NumTurns = displayValue(r.NumTurns)
	s.DurationMS = displayValue(r.DurationMS)
	if err := json.Unmarshal(r.TotalCostUSD, &s.TotalCostUSD); err != nil {
		return s, fmt.Errorf("%w: total_cost_usd: %v", errShape, err)
	}
	return s, nil
}

// IsSuccess reports whether the subtype is the string "success". Subtypes of
// any other JSON type never match.
func (r *Record) IsSuccess() bool {
	var s string
	return json.Unmarshal(r.Subtype, &s) == nil && s == "success"
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// truthy mirrors the loose truthiness the stream producers rely on: false,
// null, 0, "" and absence are falsy, everything else is truthy.
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// displayValue renders a JSON value for a text line: strings unquoted,
// everything else as compact JSON.
func displayValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return formatNumber(f)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// formatNumber prints f the way a JavaScript number converts to a string:
// shortest round-trip digits, plain notation between 1e-6 and 1e21.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e+0", "e+", 1)
		return strings.Replace(s, "e-0", "e-", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toFixed formats f with the given number of decimals, rounding ties away
// from zero on the exact binary value like Number.prototype.toFixed.
// fmt's %f rounds such ties to even.
func toFixed(f float64, digits int) string {
	neg := f < 0
	if neg {
		f = -f
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	r := new(big.Rat).SetFloat64(f)
	r.Mul(r, new(big.Rat).SetInt(scale))
	r.Add(r, big.NewRat(1, 2))
	n := new(big.Int).Div(r.Num(), r.Denom())

	s := n.String()
	if len(s) <= digits {
		s = strings.Repeat("0", digits-len(s)+1) + s
	}
	if digits > 0 {
		s = s[:len(s)-digits] + "." + s[len(s)-digits:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
