package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Kind
	}{
		{
			name: "assistant tool_use",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{}}]}}`,
			want: KindToolCall,
		},
		{
			name: "tool_use wins over earlier text",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"},{"type":"tool_use","name":"Read"}]}}`,
			want: KindToolCall,
		},
		{
			name: "assistant text",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
			want: KindAssistantText,
		},
		{
			name: "user tool_result",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","content":"ok"}]}}`,
			want: KindToolResult,
		},
		{
			name: "user text is not rendered",
			line: `{"type":"user","message":{"content":[{"type":"text","text":"prompt"}]}}`,
			want: KindNone,
		},
		{
			name: "user string content",
			line: `{"type":"user","message":{"role":"user","content":"prompt"}}`,
			want: KindNone,
		},
		{
			name: "assistant tool_result is not a result",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_result","content":"ok"}]}}`,
			want: KindNone,
		},
		{
			name: "result",
			line: `{"type":"result","subtype":"error_max_turns"}`,
			want: KindFinalResult,
		},
		{
			name: "system",
			line: `{"type":"system","subtype":"init"}`,
			want: KindNone,
		},
		{
			name: "missing message",
			line: `{"type":"assistant"}`,
			want: KindNone,
		},
		{
			name: "content not an array",
			line: `{"type":"assistant","message":{"content":{"type":"text"}}}`,
			want: KindNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Classify(rec))
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "tool_call", KindToolCall.String())
	assert.Equal(t, "tool_result", KindToolResult.String())
	assert.Equal(t, "assistant_text", KindAssistantText.String())
	assert.Equal(t, "final_result", KindFinalResult.String())
	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "none", Kind(42).String())
}

func TestDecodeRecord_NotAnObject(t *testing.T) {
	for _, line := range []string{"not json", "123", `"text"`, "[1,2]", `{"type":`} {
		_, err := DecodeRecord([]byte(line))
		assert.Error(t, err, line)
	}
}
