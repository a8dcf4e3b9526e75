package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

func TestModelAgentStreamsModelEvents(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.AddResponse("hi", "hey")

	a := NewModelAgent("Assistant", mock)
	assert.Equal(t, "Assistant", a.Name())

	out, errCh := a.Run(context.Background(), core.AgentRequest{
		ThreadID: "t1",
		RunID:    "r1",
		Messages: []core.Message{{ID: "m1", Role: "user", Content: "hi"}},
	})

	var events []core.Event
	for ev := range out {
		events = append(events, ev)
	}
	require.NoError(t, <-errCh)

	require.NotEmpty(t, events)
	assert.Equal(t, core.EventTypeTextMessageStart, events[0].Type())
	assert.Equal(t, core.EventTypeTextMessageEnd, events[len(events)-1].Type())

	var text string
	for _, ev := range events {
		if c, ok := ev.(core.TextMessageContent); ok {
			text += c.Delta
		}
	}
	assert.Equal(t, "hey", text)
}

func TestModelAgentInstructionsOption(t *testing.T) {
	a := NewModelAgent("Custom", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.Instructions = "Answer tersely."
	})
	assert.Equal(t, "Answer tersely.", a.instructions)
}
