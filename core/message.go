package core

// ToolCall is a completed tool invocation attached to an assistant message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized JSON
}

// Message is the derived conversational view of a thread. It is
// reconstructed from the compacted event sequence and never persisted on
// its own.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"` // user, assistant, tool, system
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"` // set on tool result messages
}

// Messages folds an ordered event sequence into the message history it
// describes. A MessagesSnapshot replaces everything accumulated so far;
// run lifecycle and state events contribute nothing to the view.
func Messages(events []Event) []Message {
	var (
		out   []Message
		index = map[string]int{} // correlation id -> position in out
	)
	for _, e := range events {
		switch ev := e.(type) {
		case TextMessageStart:
			if _, ok := index[ev.MessageID]; ok {
				continue
			}
			index[ev.MessageID] = len(out)
			out = append(out, Message{ID: ev.MessageID, Role: ev.Role})
		case TextMessageContent:
			if i, ok := index[ev.MessageID]; ok {
				out[i].Content += ev.Delta
			}
		case TextMessageEnd:
			// Boundary marker only; the message is already materialized.
		case ToolCallStart:
			call := ToolCall{ID: ev.ToolCallID, Name: ev.ToolName}
			if i, ok := index[ev.ParentMessageID]; ok && ev.ParentMessageID != "" {
				out[i].ToolCalls = append(out[i].ToolCalls, call)
				index[ev.ToolCallID] = i
				continue
			}
			index[ev.ToolCallID] = len(out)
			out = append(out, Message{ID: ev.ToolCallID, Role: "assistant", ToolCalls: []ToolCall{call}})
		case ToolCallArgs:
			if i, ok := index[ev.ToolCallID]; ok {
				for j := range out[i].ToolCalls {
					if out[i].ToolCalls[j].ID == ev.ToolCallID {
						out[i].ToolCalls[j].Arguments += ev.Delta
					}
				}
			}
		case ToolCallEnd:
			// Boundary marker only.
		case ToolCallResult:
			id := ev.MessageID
			if id == "" {
				id = ev.ToolCallID
			}
			out = append(out, Message{ID: id, Role: "tool", Content: ev.Content, ToolCallID: ev.ToolCallID})
		case MessagesSnapshot:
			out = append([]Message(nil), ev.Messages...)
			index = map[string]int{}
			for i, m := range out {
				index[m.ID] = i
			}
		case RunStarted, RunFinished, RunError, StateSnapshot, StateDelta, Raw, Custom:
			// Not part of the conversational view.
		}
	}
	return out
}

// MessageEvents expands a message into the event triplet (or tool call
// sequence) that persists it. The inverse of the Messages fold for a single
// message.
func MessageEvents(m Message) []Event {
	if m.Role == "tool" {
		return []Event{ToolCallResult{ToolCallID: m.ToolCallID, MessageID: m.ID, Content: m.Content}}
	}
	events := []Event{TextMessageStart{MessageID: m.ID, Role: m.Role}}
	if m.Content != "" {
		events = append(events, TextMessageContent{MessageID: m.ID, Delta: m.Content})
	}
	events = append(events, TextMessageEnd{MessageID: m.ID})
	for _, call := range m.ToolCalls {
		events = append(events,
			ToolCallStart{ToolCallID: call.ID, ToolName: call.Name, ParentMessageID: m.ID},
			ToolCallArgs{ToolCallID: call.ID, Delta: call.Arguments},
			ToolCallEnd{ToolCallID: call.ID},
		)
	}
	return events
}
