package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentrail/core"
)

func feedAll(c *compactor, events ...core.Event) []core.Event {
	var out []core.Event
	for _, ev := range events {
		out = append(out, c.feed(ev)...)
	}
	return append(out, c.flush()...)
}

func TestCompactorMergesConsecutiveTextDeltas(t *testing.T) {
	var c compactor
	out := feedAll(&c,
		core.TextMessageStart{MessageID: "m1", Role: "assistant"},
		core.TextMessageContent{MessageID: "m1", Delta: "Hel"},
		core.TextMessageContent{MessageID: "m1", Delta: "lo"},
		core.TextMessageContent{MessageID: "m1", Delta: " world"},
		core.TextMessageEnd{MessageID: "m1"},
	)

	assert.Equal(t, []core.Event{
		core.TextMessageStart{MessageID: "m1", Role: "assistant"},
		core.TextMessageContent{MessageID: "m1", Delta: "Hello world"},
		core.TextMessageEnd{MessageID: "m1"},
	}, out)
}

func TestCompactorMergesToolCallArgs(t *testing.T) {
	var c compactor
	out := feedAll(&c,
		core.ToolCallStart{ToolCallID: "c1", ToolName: "search"},
		core.ToolCallArgs{ToolCallID: "c1", Delta: `{"q":`},
		core.ToolCallArgs{ToolCallID: "c1", Delta: `"go"}`},
		core.ToolCallEnd{ToolCallID: "c1"},
	)

	assert.Equal(t, []core.Event{
		core.ToolCallStart{ToolCallID: "c1", ToolName: "search"},
		core.ToolCallArgs{ToolCallID: "c1", Delta: `{"q":"go"}`},
		core.ToolCallEnd{ToolCallID: "c1"},
	}, out)
}

func TestCompactorKeepsDistinctCorrelations(t *testing.T) {
	var c compactor
	out := feedAll(&c,
		core.TextMessageContent{MessageID: "m1", Delta: "a"},
		core.TextMessageContent{MessageID: "m2", Delta: "b"},
		core.TextMessageContent{MessageID: "m1", Delta: "c"},
	)

	// Interleaved ids never merge; order is preserved.
	assert.Equal(t, []core.Event{
		core.TextMessageContent{MessageID: "m1", Delta: "a"},
		core.TextMessageContent{MessageID: "m2", Delta: "b"},
		core.TextMessageContent{MessageID: "m1", Delta: "c"},
	}, out)
}

func TestCompactorDoesNotMergeAcrossKinds(t *testing.T) {
	var c compactor
	out := feedAll(&c,
		core.TextMessageContent{MessageID: "m1", Delta: "a"},
		core.ToolCallArgs{ToolCallID: "m1", Delta: "b"},
	)
	assert.Len(t, out, 2)
}

func TestCompactorFlushEmpty(t *testing.T) {
	var c compactor
	assert.Empty(t, c.flush())
}
