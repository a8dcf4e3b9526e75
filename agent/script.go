package agent

import (
	"context"

	"github.com/hupe1980/agentrail/core"
)

// ScriptAgent replays a fixed sequence of events per run. Deterministic by
// construction, it is the workhorse of tests and examples: scripts can
// exercise every event kind, including deliberately fragmented deltas and
// duplicate message ids.
type ScriptAgent struct {
	name   string
	script [][]core.Event
	err    error
	calls  int
}

// Compile-time contract check.
var _ core.Agent = (*ScriptAgent)(nil)

// NewScriptAgent creates an agent that emits one scripted event batch per
// run, in order. Runs beyond the script replay the last batch.
func NewScriptAgent(name string, script ...[]core.Event) *ScriptAgent {
	return &ScriptAgent{name: name, script: script}
}

// FailWith makes every subsequent run emit err after its scripted events.
func (a *ScriptAgent) FailWith(err error) *ScriptAgent {
	a.err = err
	return a
}

// Name returns the agent's human-readable name.
func (a *ScriptAgent) Name() string { return a.name }

// Run implements core.Agent by replaying the next scripted batch.
func (a *ScriptAgent) Run(ctx context.Context, req core.AgentRequest) (<-chan core.Event, <-chan error) {
	var batch []core.Event
	if len(a.script) > 0 {
		idx := a.calls
		if idx >= len(a.script) {
			idx = len(a.script) - 1
		}
		batch = a.script[idx]
	}
	a.calls++

	out := make(chan core.Event, len(batch))
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		for _, ev := range batch {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- ev:
			}
		}
		if a.err != nil {
			errCh <- a.err
		}
	}()
	return out, errCh
}
