package model

import (
	"context"
	"testing"

	"github.com/hupe1980/agentrail/core"
)

func TestMockModelStreamsCannedResponse(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	out, errCh := m.Stream(context.Background(), Request{
		Messages: []core.Message{{ID: "m1", Role: "user", Content: "ping"}},
	})

	var events []core.Event
	for ev := range out {
		events = append(events, ev)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream: %v", err)
	}

	if len(events) < 3 {
		t.Fatalf("expected start/content/end events, got %d", len(events))
	}
	if events[0].Type() != core.EventTypeTextMessageStart {
		t.Errorf("expected message start first, got %s", events[0].Type())
	}
	var text string
	for _, ev := range events {
		if c, ok := ev.(core.TextMessageContent); ok {
			text += c.Delta
		}
	}
	if text != "pong" {
		t.Errorf("expected %q, got %q", "pong", text)
	}
}

func TestMockModelRequiresMessages(t *testing.T) {
	m := NewMockModel("mock", "test")
	out, errCh := m.Stream(context.Background(), Request{})
	for range out {
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestMockModelInfo(t *testing.T) {
	m := NewMockModel("mock", "test")
	info := m.Info()
	if info.Name != "mock" || info.Provider != "test" || !info.SupportsTools {
		t.Errorf("unexpected info: %+v", info)
	}
}
