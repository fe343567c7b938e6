package agent

import (
	"encoding/json"
	"strings"
)

// ToolCall is one tool invocation extracted from a turn, in the shape
// the store serializes.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is one tool outcome extracted from a turn.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   *bool  `json:"is_error,omitempty"`
}

// TurnContent is the persistable reduction of one assistant turn.
type TurnContent struct {
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Empty reports whether the turn produced nothing worth persisting.
func (t TurnContent) Empty() bool {
	return t.Text == "" && len(t.ToolCalls) == 0 && len(t.ToolResults) == 0
}

// ExtractTurn reduces a turn's events to persistable content: all
// assistant text joined by blank lines, plus the tool calls and
// results in arrival order. Blocks missing their identifying fields
// are skipped, never fatal.
func ExtractTurn(events []Event) TurnContent {
	var (
		textParts []string
		content   TurnContent
	)

	for _, ev := range events {
		switch ev := ev.(type) {
		case AssistantEvent:
			for _, block := range ev.Blocks {
				switch block := block.(type) {
				case TextBlock:
					if block.Text != "" {
						textParts = append(textParts, block.Text)
					}
				case ToolUseBlock:
					if block.ID == "" || block.Name == "" {
						continue
					}
					content.ToolCalls = append(content.ToolCalls, ToolCall{
						ID:    block.ID,
						Name:  block.Name,
						Input: block.Input,
					})
				}
			}
		case UserEvent:
			for _, res := range ev.Results {
				if res.ToolUseID == "" {
					continue
				}
				content.ToolResults = append(content.ToolResults, ToolResult{
					ToolUseID: res.ToolUseID,
					Content:   res.Content,
					IsError:   res.IsError,
				})
			}
		}
	}

	content.Text = strings.Join(textParts, "\n\n")
	return content
}
