package agent

import "encoding/json"

// DisplayKind discriminates the renderable item variants.
type DisplayKind string

const (
	DisplayText   DisplayKind = "text"
	DisplayTool   DisplayKind = "tool"
	DisplayResult DisplayKind = "result"
)

// DisplayItem is one renderable unit of an event history. Exactly one
// of Text, Tool or ResultSubtype is meaningful, selected by Kind.
type DisplayItem struct {
	Kind          DisplayKind
	Text          string
	Tool          *ToolDisplay
	ResultSubtype string
}

// ToolDisplay is a tool invocation merged with its outcome. Completed
// is false while the result has not arrived yet.
type ToolDisplay struct {
	ID        string
	Name      string
	Input     json.RawMessage
	Output    string
	IsError   *bool
	Completed bool
}

// ProjectDisplay folds an event history into renderable items. Tool
// invocations stay pending until their result arrives; the merged item
// is emitted at the result's position, so the display reads in
// completion order. Results that match no pending invocation are
// dropped. Invocations still pending when the history ends are drained
// as in-progress items in invocation order.
func ProjectDisplay(events []Event) []DisplayItem {
	var (
		items   []DisplayItem
		pending = make(map[string]*ToolDisplay)
		order   []*ToolDisplay
	)

	for _, ev := range events {
		switch ev := ev.(type) {
		case AssistantEvent:
			for _, block := range ev.Blocks {
				switch block := block.(type) {
				case TextBlock:
					if block.Text != "" {
						items = append(items, DisplayItem{
							Kind: DisplayText,
							Text: block.Text,
						})
					}
				case ToolUseBlock:
					td := &ToolDisplay{
						ID:    block.ID,
						Name:  block.Name,
						Input: block.Input,
					}
					order = append(order, td)
					if block.ID != "" {
						pending[block.ID] = td
					}
				}
			}

		case UserEvent:
			for _, res := range ev.Results {
				td, ok := pending[res.ToolUseID]
				if !ok {
					continue
				}
				delete(pending, res.ToolUseID)
				td.Output = res.Content
				td.IsError = res.IsError
				td.Completed = true
				items = append(items, DisplayItem{Kind: DisplayTool, Tool: td})
			}

		case ResultEvent:
			items = append(items, DisplayItem{
				Kind:          DisplayResult,
				ResultSubtype: ev.Subtype,
			})
		}
	}

	for _, td := range order {
		if !td.Completed {
			items = append(items, DisplayItem{Kind: DisplayTool, Tool: td})
		}
	}

	return items
}
