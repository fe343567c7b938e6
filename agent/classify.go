package agent

import (
	"strings"
	"time"
)

// OutputKind distinguishes the subprocess stream a line came from.
type OutputKind string

const (
	OutputStdout OutputKind = "stdout"
	OutputStderr OutputKind = "stderr"
)

// OutputLine is one raw line of subprocess output that carried no
// structured payload.
type OutputLine struct {
	ProcessID string     `json:"process_id"`
	Content   string     `json:"content"`
	Kind      OutputKind `json:"output_type"`
	Timestamp time.Time  `json:"timestamp"`
}

// PermissionRequest is an interactive approval prompt detected in the
// output stream. The agent is blocked until an answer is written to
// its stdin.
type PermissionRequest struct {
	ProcessID   string `json:"process_id"`
	ToolName    string `json:"tool_name"`
	FilePath    string `json:"file_path,omitempty"`
	Description string `json:"description"`
}

// Classified is the outcome of classifying one output line. At most
// one field is set; all nil means the line was blank after
// sanitization and should be discarded.
type Classified struct {
	Event      Event
	Permission *PermissionRequest
	Raw        *OutputLine
}

// Empty reports whether the line classified to nothing.
func (c Classified) Empty() bool {
	return c.Event == nil && c.Permission == nil && c.Raw == nil
}

// Classify sanitizes one line of subprocess output and routes it:
// structured stream-json becomes an Event, an interactive approval
// prompt becomes a PermissionRequest, anything else becomes raw
// output. Blank lines classify to nothing.
func Classify(processID, line string, kind OutputKind, now time.Time) Classified {
	clean := Sanitize(line)
	trimmed := strings.TrimSpace(clean)
	if trimmed == "" {
		return Classified{}
	}

	if strings.HasPrefix(trimmed, "{") {
		if ev, ok := DecodeEvent(trimmed); ok {
			return Classified{Event: ev}
		}
	}

	if req := detectPermissionPrompt(processID, trimmed); req != nil {
		return Classified{Permission: req}
	}

	return Classified{Raw: &OutputLine{
		ProcessID: processID,
		Content:   clean,
		Kind:      kind,
		Timestamp: now,
	}}
}

// detectPermissionPrompt recognizes the CLI's plain-text approval
// prompts, e.g. "Allow Claude to write to /tmp/out.txt? [y/n]".
// Returns nil when the line is not a prompt.
func detectPermissionPrompt(processID, line string) *PermissionRequest {
	if !strings.Contains(line, "Allow") {
		return nil
	}
	if !strings.Contains(line, "(y/n)") && !strings.Contains(line, "? [y/n]") {
		return nil
	}

	return &PermissionRequest{
		ProcessID:   processID,
		ToolName:    promptToolName(line),
		FilePath:    promptFilePath(line),
		Description: line,
	}
}

// promptToolName guesses which tool the prompt is asking about from
// keywords in the prompt text.
func promptToolName(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "write"):
		return "Write"
	case strings.Contains(lower, "read"):
		return "Read"
	case strings.Contains(lower, "execute"), strings.Contains(lower, "bash"):
		return "Bash"
	default:
		return "Tool"
	}
}

// promptFilePath extracts the first token that looks like a filesystem
// path, Unix or Windows. Empty when the prompt names no path.
func promptFilePath(line string) string {
	for _, tok := range strings.Fields(line) {
		tok = strings.TrimLeft(tok, `"'`)
		tok = strings.TrimRight(tok, `"'?.,:;`)
		if strings.HasPrefix(tok, "/") || strings.Contains(tok, `:\`) {
			return tok
		}
	}
	return ""
}
