package agentrail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
)

func TestRunSyncCollectsEvents(t *testing.T) {
	ctx := context.Background()
	rail := New()
	defer rail.Close()

	msgID := core.NewMessageID()
	scripted := agent.NewScriptAgent("echo", []core.Event{
		core.TextMessageStart{MessageID: msgID, Role: "assistant"},
		core.TextMessageContent{MessageID: msgID, Delta: "done"},
		core.TextMessageEnd{MessageID: msgID},
	})

	runID, events, err := rail.RunSync(ctx, core.RunInput{
		ThreadID: "t1",
		Agent:    scripted,
		Scope:    core.NewScope("user-1"),
		Messages: []core.Message{{ID: core.NewMessageID(), Role: "user", Content: "go"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventTypeRunStarted, events[0].Type())
	assert.Equal(t, core.EventTypeRunFinished, events[len(events)-1].Type())
}

func TestFacadeDelegatesReadPaths(t *testing.T) {
	ctx := context.Background()
	rail := New()
	defer rail.Close()

	scope := core.NewScope("user-1")
	_, _, err := rail.RunSync(ctx, core.RunInput{ThreadID: "t1", Agent: agent.NewScriptAgent("noop"), Scope: scope})
	require.NoError(t, err)

	meta, err := rail.GetThreadMetadata(ctx, "t1", scope)
	require.NoError(t, err)
	require.NotNil(t, meta)

	page, err := rail.ListThreads(ctx, scope, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	ch, err := rail.Connect(ctx, "t1", scope)
	require.NoError(t, err)
	var n int
	for range ch {
		n++
	}
	assert.NotZero(t, n)

	require.NoError(t, rail.DeleteThread(ctx, "t1", scope))
	require.NoError(t, rail.Reset(ctx))
}
