// Package agent turns the line-oriented output of an AI coding agent
// subprocess into structured, replay-safe state.
//
// The package is organized into focused modules:
//   - events.go: the Event sum type and wire decoding
//   - sanitize.go: terminal escape sequence stripping
//   - classify.go: line classification (event / permission prompt / raw output)
//   - lifecycle.go: process status state machine and session-id capture
//   - segment.go: current-turn isolation from replayed history
//   - extract.go: reduction of a turn to persistable content
//   - project.go: reduction of event history to renderable items
//
// Everything here is pure computation over snapshots; the session
// package owns the mutable per-process accumulators.
package agent

import (
	"encoding/json"
	"strings"
)

// Event is one structured message from the agent's stream-json output.
// It is a closed sum: SystemEvent, AssistantEvent, UserEvent and
// ResultEvent are the only implementations, so a type switch over the
// four variants is exhaustive.
type Event interface {
	isEvent()
}

// SystemEvent is a meta/control notification. Subtype "init" carries
// the resumable session identifier.
type SystemEvent struct {
	Subtype   string
	SessionID string
	Data      json.RawMessage
}

// AssistantEvent carries agent-authored content blocks.
type AssistantEvent struct {
	Blocks []ContentBlock
}

// UserEvent carries tool outcomes fed back to the agent.
type UserEvent struct {
	Results []ToolResultBlock
}

// ResultEvent marks the end of one response turn.
type ResultEvent struct {
	Subtype string
	Data    json.RawMessage
}

func (SystemEvent) isEvent()    {}
func (AssistantEvent) isEvent() {}
func (UserEvent) isEvent()      {}
func (ResultEvent) isEvent()    {}

// ContentBlock is one piece of assistant content: either a TextBlock
// or a ToolUseBlock. Closed sum, same contract as Event.
type ContentBlock interface {
	isContentBlock()
}

// TextBlock is plain assistant text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is an asynchronous tool invocation. ID pairs the
// invocation with the eventual ToolResultBlock.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (TextBlock) isContentBlock()    {}
func (ToolUseBlock) isContentBlock() {}

// ToolResultBlock is the outcome of a tool invocation. ToolUseID
// either matches a previously emitted ToolUseBlock.ID or is orphaned;
// orphans are handled gracefully downstream, never fatally.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   *bool
}

// wireMessage mirrors the JSON shape of agent stream-json lines.
// Only the fields this package consumes are declared; everything else
// is ignored by encoding/json.
type wireMessage struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   struct {
		Content []struct {
			Type      string          `json:"type"`
			ID        string          `json:"id,omitempty"`
			Text      string          `json:"text,omitempty"`
			Name      string          `json:"name,omitempty"`
			Input     json.RawMessage `json:"input,omitempty"`
			ToolUseID string          `json:"tool_use_id,omitempty"`
			// camelCase variant emitted by some CLI versions
			ToolUseIDAlt string          `json:"toolUseId,omitempty"`
			Content      json.RawMessage `json:"content,omitempty"`
			IsError      *bool           `json:"is_error,omitempty"`
		} `json:"content"`
	} `json:"message"`
}

// DecodeEvent parses one stream-json line into an Event. The second
// return value is false when the line is not valid JSON or carries no
// recognized type discriminant. Decoding never returns an error;
// malformed input simply fails to classify and falls through to raw
// output handling.
func DecodeEvent(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return nil, false
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil, false
	}

	switch msg.Type {
	case "system":
		return SystemEvent{
			Subtype:   msg.Subtype,
			SessionID: msg.SessionID,
			Data:      msg.Data,
		}, true

	case "assistant":
		var blocks []ContentBlock
		for _, c := range msg.Message.Content {
			switch c.Type {
			case "text":
				blocks = append(blocks, TextBlock{Text: c.Text})
			case "tool_use":
				blocks = append(blocks, ToolUseBlock{
					ID:    c.ID,
					Name:  c.Name,
					Input: c.Input,
				})
			}
		}
		return AssistantEvent{Blocks: blocks}, true

	case "user":
		var results []ToolResultBlock
		for _, c := range msg.Message.Content {
			toolUseID := c.ToolUseID
			if toolUseID == "" {
				toolUseID = c.ToolUseIDAlt
			}
			if c.Type != "tool_result" && toolUseID == "" {
				continue
			}
			results = append(results, ToolResultBlock{
				ToolUseID: toolUseID,
				Content:   flattenResultContent(c.Content),
				IsError:   c.IsError,
			})
		}
		return UserEvent{Results: results}, true

	case "result":
		return ResultEvent{Subtype: msg.Subtype, Data: msg.Data}, true
	}

	return nil, false
}

// resultTextBlock is the element shape when tool result content
// arrives as an array of text blocks instead of a plain string.
type resultTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// flattenResultContent reduces tool result content to a plain string.
// The wire value is either a JSON string or an array of text blocks;
// anything else is kept as raw JSON text rather than dropped.
func flattenResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []resultTextBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return string(raw)
}
