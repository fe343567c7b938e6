package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBlankLineDiscarded(t *testing.T) {
	for _, line := range []string{"", "   ", "\x1b[2K", "\t"} {
		c := Classify("p1", line, OutputStdout, time.Now())
		assert.True(t, c.Empty(), "line %q should classify to nothing", line)
	}
}

func TestClassifyStructuredEvent(t *testing.T) {
	c := Classify("p1", `{"type":"system","subtype":"init","session_id":"abc123"}`, OutputStdout, time.Now())

	require.NotNil(t, c.Event)
	assert.Nil(t, c.Permission)
	assert.Nil(t, c.Raw)

	sys, ok := c.Event.(SystemEvent)
	require.True(t, ok)
	assert.Equal(t, "abc123", sys.SessionID)
}

func TestClassifyEventInsideEscapes(t *testing.T) {
	// JSON wrapped in terminal noise still decodes after sanitization
	c := Classify("p1", "\x1b[2K{\"type\":\"result\",\"subtype\":\"success\"}", OutputStdout, time.Now())
	require.NotNil(t, c.Event)
	_, ok := c.Event.(ResultEvent)
	assert.True(t, ok)
}

func TestClassifyPermissionPrompt(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantTool string
		wantPath string
	}{
		{
			name:     "write with unix path",
			line:     "Allow Claude to write to /tmp/out.txt? [y/n]",
			wantTool: "Write",
			wantPath: "/tmp/out.txt",
		},
		{
			name:     "read with quoted path",
			line:     `Allow read of "/home/user/notes.md"? (y/n)`,
			wantTool: "Read",
			wantPath: "/home/user/notes.md",
		},
		{
			name:     "bash without path",
			line:     "Allow Claude to execute this command? (y/n)",
			wantTool: "Bash",
			wantPath: "",
		},
		{
			name:     "windows path",
			line:     `Allow access to C:\Users\dev\app.cfg? [y/n]`,
			wantTool: "Tool",
			wantPath: `C:\Users\dev\app.cfg`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify("proc-7", tt.line, OutputStdout, time.Now())

			require.NotNil(t, c.Permission)
			assert.Nil(t, c.Event)
			assert.Nil(t, c.Raw)

			assert.Equal(t, "proc-7", c.Permission.ProcessID)
			assert.Equal(t, tt.wantTool, c.Permission.ToolName)
			assert.Equal(t, tt.wantPath, c.Permission.FilePath)
			assert.Equal(t, tt.line, c.Permission.Description)
		})
	}
}

func TestClassifyNotAPrompt(t *testing.T) {
	// keyword without a recognized yes/no marker is plain output
	for _, line := range []string{
		"Allow 30 seconds for the build",
		"Allow write access [y/n] toggled in settings",
	} {
		c := Classify("p1", line, OutputStdout, time.Now())
		assert.Nil(t, c.Permission, "line %q must not classify as a prompt", line)
		assert.NotNil(t, c.Raw)
	}
}

func TestClassifyRawFallback(t *testing.T) {
	now := time.Now()

	c := Classify("p1", "building target... done", OutputStderr, now)
	require.NotNil(t, c.Raw)
	assert.Equal(t, "p1", c.Raw.ProcessID)
	assert.Equal(t, "building target... done", c.Raw.Content)
	assert.Equal(t, OutputStderr, c.Raw.Kind)
	assert.Equal(t, now, c.Raw.Timestamp)

	// malformed JSON falls through to raw, not an error
	c = Classify("p1", `{"type":"assistant","message":`, OutputStdout, now)
	assert.Nil(t, c.Event)
	require.NotNil(t, c.Raw)
	assert.Equal(t, `{"type":"assistant","message":`, c.Raw.Content)
}
