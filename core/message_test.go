package core

import "testing"

func TestMessagesFold(t *testing.T) {
	events := []Event{
		RunStarted{ThreadID: "t1", RunID: "r1"},
		TextMessageStart{MessageID: "m1", Role: "user"},
		TextMessageContent{MessageID: "m1", Delta: "What is the "},
		TextMessageContent{MessageID: "m1", Delta: "weather?"},
		TextMessageEnd{MessageID: "m1"},
		TextMessageStart{MessageID: "m2", Role: "assistant"},
		TextMessageContent{MessageID: "m2", Delta: "Let me check."},
		TextMessageEnd{MessageID: "m2"},
		ToolCallStart{ToolCallID: "c1", ToolName: "get_weather", ParentMessageID: "m2"},
		ToolCallArgs{ToolCallID: "c1", Delta: `{"city":`},
		ToolCallArgs{ToolCallID: "c1", Delta: `"Berlin"}`},
		ToolCallEnd{ToolCallID: "c1"},
		ToolCallResult{ToolCallID: "c1", MessageID: "m3", Content: "sunny"},
		RunFinished{ThreadID: "t1", RunID: "r1"},
	}

	msgs := Messages(events)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	if msgs[0].Role != "user" || msgs[0].Content != "What is the weather?" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}

	assistant := msgs[1]
	if assistant.Role != "assistant" || assistant.Content != "Let me check." {
		t.Errorf("unexpected assistant message: %+v", assistant)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected tool call attached to assistant message, got %+v", assistant.ToolCalls)
	}
	call := assistant.ToolCalls[0]
	if call.ID != "c1" || call.Name != "get_weather" || call.Arguments != `{"city":"Berlin"}` {
		t.Errorf("unexpected tool call: %+v", call)
	}

	result := msgs[2]
	if result.Role != "tool" || result.ToolCallID != "c1" || result.Content != "sunny" {
		t.Errorf("unexpected tool result message: %+v", result)
	}
}

func TestMessagesDuplicateStartIgnored(t *testing.T) {
	events := []Event{
		TextMessageStart{MessageID: "m1", Role: "user"},
		TextMessageContent{MessageID: "m1", Delta: "hi"},
		TextMessageStart{MessageID: "m1", Role: "user"},
		TextMessageEnd{MessageID: "m1"},
	}
	msgs := Messages(events)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Content != "hi" {
		t.Errorf("expected content preserved, got %q", msgs[0].Content)
	}
}

func TestMessagesSnapshotReplaces(t *testing.T) {
	events := []Event{
		TextMessageStart{MessageID: "m1", Role: "user"},
		TextMessageContent{MessageID: "m1", Delta: "old"},
		TextMessageEnd{MessageID: "m1"},
		MessagesSnapshot{Messages: []Message{
			{ID: "m9", Role: "assistant", Content: "replaced"},
		}},
	}
	msgs := Messages(events)
	if len(msgs) != 1 || msgs[0].ID != "m9" || msgs[0].Content != "replaced" {
		t.Fatalf("snapshot must replace accumulated history, got %+v", msgs)
	}
}

func TestMessageEventsInverse(t *testing.T) {
	msg := Message{
		ID:      "m1",
		Role:    "user",
		Content: "hello",
	}
	folded := Messages(MessageEvents(msg))
	if len(folded) != 1 {
		t.Fatalf("expected 1 message, got %d", len(folded))
	}
	if folded[0].ID != msg.ID || folded[0].Role != msg.Role || folded[0].Content != msg.Content {
		t.Errorf("expected %+v, got %+v", msg, folded[0])
	}

	tool := Message{ID: "m2", Role: "tool", Content: "42", ToolCallID: "c1"}
	events := MessageEvents(tool)
	if len(events) != 1 {
		t.Fatalf("tool message expands to a single result event, got %d", len(events))
	}
	if _, ok := events[0].(ToolCallResult); !ok {
		t.Fatalf("expected ToolCallResult, got %T", events[0])
	}
}
