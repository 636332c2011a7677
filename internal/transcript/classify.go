package transcript

// Kind identifies how a record is rendered.
type Kind int

const (
	// KindNone marks records that produce no output.
	KindNone Kind = iota
	// KindToolCall is an assistant record carrying a tool_use item.
	KindToolCall
	// KindToolResult is a user record carrying a tool_result item.
	KindToolResult
	// KindAssistantText is an assistant record carrying a text item.
	KindAssistantText
	// KindFinalResult is the closing result record.
	KindFinalResult
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindToolCall:
		return "tool_call"
	case KindToolResult:
		return "tool_result"
	case KindAssistantText:
		return "assistant_text"
	case KindFinalResult:
		return "final_result"
	default:
		return "none"
	}
}

// Classify picks the renderer for rec. Rules are tried in order and the first
// match wins, so an assistant record with both tool_use and text items is a
// tool call.
func Classify(rec *Record) Kind {
	if rec == nil {
		return KindNone
	}

	switch rec.Type {
	case TypeAssistant:
		items := rec.Items()
		if _, ok := firstOf(items, ItemToolUse); ok {
			return KindToolCall
		}
		if _, ok := firstOf(items, ItemText); ok {
			return KindAssistantText
		}
	case TypeUser:
		if _, ok := rec.FirstItem(ItemToolResult); ok {
			return KindToolResult
		}
	case TypeResult:
		return KindFinalResult
	}

	return KindNone
}
