package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventSystemInit(t *testing.T) {
	line := `{"type":"system","subtype":"init","session_id":"abc123"}`

	ev, ok := DecodeEvent(line)
	require.True(t, ok)

	sys, ok := ev.(SystemEvent)
	require.True(t, ok)
	assert.Equal(t, "init", sys.Subtype)
	assert.Equal(t, "abc123", sys.SessionID)
}

func TestDecodeEventAssistantBlocks(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[` +
		`{"type":"text","text":"Let me check that file."},` +
		`{"type":"tool_use","id":"toolu_01","name":"Read","input":{"file_path":"/tmp/a.txt"}},` +
		`{"type":"thinking","thinking":"hmm"}]}}`

	ev, ok := DecodeEvent(line)
	require.True(t, ok)

	asst, ok := ev.(AssistantEvent)
	require.True(t, ok)
	require.Len(t, asst.Blocks, 2, "unrecognized block types are dropped")

	text, ok := asst.Blocks[0].(TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Let me check that file.", text.Text)

	tool, ok := asst.Blocks[1].(ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "toolu_01", tool.ID)
	assert.Equal(t, "Read", tool.Name)
	assert.JSONEq(t, `{"file_path":"/tmp/a.txt"}`, string(tool.Input))
}

func TestDecodeEventUserToolResult(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantID      string
		wantContent string
		wantErr     *bool
	}{
		{
			name:        "string content",
			line:        `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}`,
			wantID:      "t1",
			wantContent: "ok",
		},
		{
			name:        "array content",
			line:        `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t2","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}]}}`,
			wantID:      "t2",
			wantContent: "line one\nline two",
		},
		{
			name:        "camelCase id with error flag",
			line:        `{"type":"user","message":{"content":[{"type":"tool_result","toolUseId":"t3","content":"boom","is_error":true}]}}`,
			wantID:      "t3",
			wantContent: "boom",
			wantErr:     boolPtr(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DecodeEvent(tt.line)
			require.True(t, ok)

			user, ok := ev.(UserEvent)
			require.True(t, ok)
			require.Len(t, user.Results, 1)

			res := user.Results[0]
			assert.Equal(t, tt.wantID, res.ToolUseID)
			assert.Equal(t, tt.wantContent, res.Content)
			assert.Equal(t, tt.wantErr, res.IsError)
		})
	}
}

func TestDecodeEventResult(t *testing.T) {
	ev, ok := DecodeEvent(`{"type":"result","subtype":"success"}`)
	require.True(t, ok)

	res, ok := ev.(ResultEvent)
	require.True(t, ok)
	assert.Equal(t, "success", res.Subtype)
}

func TestDecodeEventRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", "plain text output"},
		{"truncated json", `{"type":"assistant","message":`},
		{"unknown type", `{"type":"telemetry","data":{}}`},
		{"missing type", `{"subtype":"init"}`},
		{"empty line", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DecodeEvent(tt.line)
			assert.False(t, ok)
			assert.Nil(t, ev)
		})
	}
}

func TestFlattenResultContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain string", `"hello"`, "hello"},
		{"text blocks", `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, "a\nb"},
		{"unexpected shape kept raw", `{"weird":true}`, `{"weird":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flattenResultContent(json.RawMessage(tt.raw))
			assert.Equal(t, tt.want, got)
		})
	}
}

func boolPtr(b bool) *bool { return &b }
