package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
)

func collect(t *testing.T, a core.Agent) ([]core.Event, error) {
	t.Helper()
	out, errCh := a.Run(context.Background(), core.AgentRequest{ThreadID: "t1", RunID: "r1"})
	var events []core.Event
	for ev := range out {
		events = append(events, ev)
	}
	return events, <-errCh
}

func TestScriptAgentReplaysBatchesInOrder(t *testing.T) {
	a := NewScriptAgent("scripted",
		[]core.Event{core.TextMessageStart{MessageID: "m1", Role: "assistant"}},
		[]core.Event{core.TextMessageStart{MessageID: "m2", Role: "assistant"}},
	)

	first, err := collect(t, a)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "m1", first[0].(core.TextMessageStart).MessageID)

	second, err := collect(t, a)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "m2", second[0].(core.TextMessageStart).MessageID)

	// Runs beyond the script repeat the last batch.
	third, err := collect(t, a)
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.Equal(t, "m2", third[0].(core.TextMessageStart).MessageID)
}

func TestScriptAgentFailWith(t *testing.T) {
	boom := errors.New("boom")
	a := NewScriptAgent("failing").FailWith(boom)

	events, err := collect(t, a)
	assert.Empty(t, events)
	require.ErrorIs(t, err, boom)
}

func TestScriptAgentEmptyScript(t *testing.T) {
	a := NewScriptAgent("empty")
	events, err := collect(t, a)
	require.NoError(t, err)
	assert.Empty(t, events)
}
