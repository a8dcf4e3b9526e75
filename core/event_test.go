package core

import (
	"strings"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		RunStarted{ThreadID: "t1", RunID: "r1"},
		RunError{RunID: "r1", Message: "boom", Code: "CANCELLED"},
		TextMessageStart{MessageID: "m1", Role: "assistant"},
		TextMessageContent{MessageID: "m1", Delta: "Hello world"},
		ToolCallStart{ToolCallID: "c1", ToolName: "get_weather", ParentMessageID: "m1"},
		ToolCallArgs{ToolCallID: "c1", Delta: `{"city":"Berlin"}`},
		ToolCallResult{ToolCallID: "c1", MessageID: "m2", Content: "sunny"},
		Custom{Name: "checkpoint", Value: "phase-1"},
	}

	for _, ev := range events {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("marshal %s: %v", ev.Type(), err)
		}
		if !strings.Contains(string(data), string(ev.Type())) {
			t.Errorf("payload of %s missing type discriminator: %s", ev.Type(), data)
		}
		got, err := UnmarshalEvent(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", ev.Type(), err)
		}
		if got != ev {
			t.Errorf("round trip of %s: expected %#v, got %#v", ev.Type(), ev, got)
		}
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{"type":"NOT_A_THING"}`)); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestCorrelationID(t *testing.T) {
	cases := []struct {
		event Event
		want  string
	}{
		{TextMessageStart{MessageID: "m1"}, "m1"},
		{TextMessageContent{MessageID: "m1"}, "m1"},
		{TextMessageEnd{MessageID: "m1"}, "m1"},
		{ToolCallStart{ToolCallID: "c1"}, "c1"},
		{ToolCallArgs{ToolCallID: "c1"}, "c1"},
		{ToolCallEnd{ToolCallID: "c1"}, "c1"},
		{ToolCallResult{ToolCallID: "c1", MessageID: "m2"}, "c1"},
		{RunStarted{RunID: "r1"}, ""},
		{Custom{Name: "x"}, ""},
	}
	for _, tc := range cases {
		if got := CorrelationID(tc.event); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.event.Type(), tc.want, got)
		}
	}
}
