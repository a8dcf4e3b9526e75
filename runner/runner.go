package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/logging"
)

var (
	// ErrRunActive is returned when a run is requested on a thread that
	// already has one in flight. Concurrent runs on the same thread are
	// rejected rather than queued; callers retry after the active run ends.
	ErrRunActive = errors.New("thread already has an active run")
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for run event delivery.
	EventBufferSize int
	// Logger receives debug/warn output. Defaults to a no-op logger.
	Logger logging.Logger
}

// Runner is the authorized, deduplicated, compacted bridge between agent
// execution and a thread's event log. It resolves or creates the target
// thread, applies scope authorization, converts unseen input messages into
// persisted events, compacts the agent's delta stream, and appends every
// surviving event to the store while yielding the same sequence to the
// caller live. Public methods are safe for concurrent use.
type Runner struct {
	store core.ThreadStore

	eventBufferSize int
	logger          logging.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc // runID -> cancel
	byThread   map[string]string             // threadID -> active runID
}

// New constructs a Runner around the given store with optional overrides.
func New(store core.ThreadStore, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		store:           store,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
		byThread:        make(map[string]string),
	}
}

// Run executes the agent against the thread, streaming the run's events.
//
// Authorization happens before any side effect: an existing thread owned by
// a different scope fails with core.ErrUnauthorized; a missing thread is
// created with the scope's owner identity. A second concurrent run on the
// same thread fails with ErrRunActive.
//
// The returned events channel carries the run's compacted, deduplicated
// event sequence (closed on completion); the error channel is buffered size
// 1 and carries at most one terminal error.
func (r *Runner) Run(ctx context.Context, input core.RunInput) (string, <-chan core.Event, <-chan error, error) {
	if err := input.Scope.Validate(); err != nil {
		return "", nil, nil, err
	}
	if input.Agent == nil {
		return "", nil, nil, fmt.Errorf("run on thread %s: no agent provided", input.ThreadID)
	}

	meta, err := r.store.Thread(ctx, input.ThreadID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve thread %s: %w", input.ThreadID, err)
	}
	if meta != nil {
		if !input.Scope.Allows(meta.ResourceID) {
			return "", nil, nil, fmt.Errorf("run on thread %s: %w", input.ThreadID, core.ErrUnauthorized)
		}
	} else {
		meta = &core.ThreadMetadata{
			ThreadID:   input.ThreadID,
			ResourceID: input.Scope.Owner(),
			Properties: input.Properties,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.store.CreateThread(ctx, *meta); err != nil {
			// A concurrent run may have created the thread between the
			// lookup and here; re-resolve and authorize against the winner.
			existing, lerr := r.store.Thread(ctx, input.ThreadID)
			if lerr != nil || existing == nil {
				return "", nil, nil, fmt.Errorf("create thread %s: %w", input.ThreadID, err)
			}
			if !input.Scope.Allows(existing.ResourceID) {
				return "", nil, nil, fmt.Errorf("run on thread %s: %w", input.ThreadID, core.ErrUnauthorized)
			}
			meta = existing
		}
	}

	runID := core.NewRunID()

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if active := r.byThread[input.ThreadID]; active != "" {
		r.mu.Unlock()
		cancel()
		return "", nil, nil, fmt.Errorf("run on thread %s (active %s): %w", input.ThreadID, active, ErrRunActive)
	}
	r.activeRuns[runID] = cancel
	r.byThread[input.ThreadID] = runID
	r.mu.Unlock()

	release := func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		if r.byThread[input.ThreadID] == runID {
			delete(r.byThread, input.ThreadID)
		}
		r.mu.Unlock()
	}

	// Snapshot persisted history while the thread is idle; with the run slot
	// held this replay is bounded.
	history, err := r.collectHistory(ctx, input.ThreadID)
	if err != nil {
		release()
		return "", nil, nil, err
	}

	if err := r.store.BeginRun(ctx, input.ThreadID, runID); err != nil {
		release()
		return "", nil, nil, fmt.Errorf("begin run %s: %w", runID, err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	go func() {
		var runErr error
		defer func() {
			if err := r.store.EndRun(context.Background(), input.ThreadID, runID, runErr); err != nil {
				r.logger.Warn("end run %s on thread %s: %v", runID, input.ThreadID, err)
			}
			release()
			close(eventsCh)
			close(errorsCh)
		}()
		runErr = r.execute(runCtx, input, runID, history, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel requests cooperative termination of an in-flight run. Cancelling an
// unknown or already finished run returns an error describing the condition.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// Connect replays the thread's persisted event sequence to a new consumer.
// If the thread does not exist, or the scope does not authorize access, it
// returns an empty, already-closed channel: existence of a thread is not
// observable to unauthorized callers.
func (r *Runner) Connect(ctx context.Context, threadID string, scope *core.Scope) (<-chan core.Event, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	meta, err := r.store.Thread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if meta == nil || !scope.Allows(meta.ResourceID) {
		empty := make(chan core.Event)
		close(empty)
		return empty, nil
	}
	ch, err := r.store.Replay(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("replay thread %s: %w", threadID, err)
	}
	return ch, nil
}

// ListThreads returns the page of threads visible to scope plus the true
// visible total.
func (r *Runner) ListThreads(ctx context.Context, scope *core.Scope, limit, offset int) (core.ThreadPage, error) {
	if err := scope.Validate(); err != nil {
		return core.ThreadPage{}, err
	}
	return r.store.ListThreads(ctx, scope, limit, offset)
}

// GetThreadMetadata returns the thread's metadata, or (nil, nil) when the
// thread does not exist or the scope does not authorize access.
func (r *Runner) GetThreadMetadata(ctx context.Context, threadID string, scope *core.Scope) (*core.ThreadMetadata, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	meta, err := r.store.Thread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if meta == nil || !scope.Allows(meta.ResourceID) {
		return nil, nil
	}
	return meta, nil
}

// DeleteThread removes the thread if the scope authorizes it. It silently
// succeeds without mutating anything when the thread does not exist or is
// not authorized. An active run on the thread is cancelled first.
func (r *Runner) DeleteThread(ctx context.Context, threadID string, scope *core.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	meta, err := r.store.Thread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("resolve thread %s: %w", threadID, err)
	}
	if meta == nil || !scope.Allows(meta.ResourceID) {
		return nil
	}

	r.mu.Lock()
	if runID := r.byThread[threadID]; runID != "" {
		if cancel, ok := r.activeRuns[runID]; ok {
			cancel()
		}
	}
	r.mu.Unlock()

	if err := r.store.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// collectHistory drains a bounded replay of the thread's persisted events.
func (r *Runner) collectHistory(ctx context.Context, threadID string) ([]core.Event, error) {
	ch, err := r.store.Replay(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("replay thread %s: %w", threadID, err)
	}
	var events []core.Event
	for ev := range ch {
		events = append(events, ev)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// execute drives one run end to end: input dedup, agent streaming,
// compaction, persistence and live delivery. It always closes the run with
// a terminal lifecycle event and returns the terminal error, if any, for
// the run audit trail.
func (r *Runner) execute(
	ctx context.Context,
	input core.RunInput,
	runID string,
	history []core.Event,
	out chan<- core.Event,
	errCh chan<- error,
) error {
	deliver := func(ev core.Event) error {
		// Persist first; persistence is not rolled back when the caller
		// stops consuming.
		if err := r.store.AppendEvent(context.Background(), input.ThreadID, ev); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			// Caller detached; keep persisting silently.
		case out <- ev:
		}
		return nil
	}

	fail := func(err error) error {
		r.logger.Error("run %s on thread %s failed: %v", runID, input.ThreadID, err)
		if derr := deliver(core.RunError{RunID: runID, Message: err.Error()}); derr != nil {
			r.logger.Warn("record run error for %s: %v", runID, derr)
		}
		errCh <- err
		return err
	}

	if err := deliver(core.RunStarted{ThreadID: input.ThreadID, RunID: runID}); err != nil {
		return fail(fmt.Errorf("start run %s: %w", runID, err))
	}

	// Convert unseen input messages into persisted events; already-seen ids
	// contribute context only.
	persistedInput := make([]core.Event, 0, len(input.Messages))
	for _, msg := range input.Messages {
		seen, err := r.store.SeenCorrelation(ctx, input.ThreadID, msg.ID)
		if err != nil {
			return fail(fmt.Errorf("dedup message %s: %w", msg.ID, err))
		}
		if seen {
			r.logger.Debug("message %s already persisted to thread %s, context only", msg.ID, input.ThreadID)
			continue
		}
		for _, ev := range core.MessageEvents(msg) {
			if err := deliver(ev); err != nil {
				return fail(fmt.Errorf("persist input message %s: %w", msg.ID, err))
			}
			persistedInput = append(persistedInput, ev)
		}
	}

	req := core.AgentRequest{
		ThreadID: input.ThreadID,
		RunID:    runID,
		Messages: core.Messages(append(history, persistedInput...)),
		State:    input.State,
	}

	agentCh, agentErrCh := input.Agent.Run(ctx, req)

	var (
		comp         compactor
		skip         = map[string]bool{} // correlation ids suppressed as duplicates
		terminalSeen = false
		cancelled    = false
	)

	forward := func(ev core.Event) error {
		for _, ready := range comp.feed(ev) {
			if err := deliver(ready); err != nil {
				return err
			}
			r.logger.Debug("run %s delivered %s event to thread %s", runID, ready.Type(), input.ThreadID)
		}
		return nil
	}

loop:
	for {
		select {
		case <-ctx.Done():
			cancelled = true
			break loop
		case ev, ok := <-agentCh:
			if !ok {
				break loop
			}
			keep, err := r.admit(ctx, input.ThreadID, runID, ev, skip)
			if err != nil {
				return fail(err)
			}
			if !keep {
				continue
			}
			if ev.Type() == core.EventTypeRunFinished || ev.Type() == core.EventTypeRunError {
				terminalSeen = true
			}
			if err := forward(ev); err != nil {
				return fail(fmt.Errorf("persist run %s event: %w", runID, err))
			}
		}
	}

	for _, ev := range comp.flush() {
		if err := deliver(ev); err != nil {
			return fail(fmt.Errorf("persist run %s event: %w", runID, err))
		}
	}

	if cancelled {
		if err := deliver(core.RunError{RunID: runID, Message: "run cancelled", Code: "CANCELLED"}); err != nil {
			r.logger.Warn("record cancellation for run %s: %v", runID, err)
		}
		errCh <- ctx.Err()
		return ctx.Err()
	}

	if err, ok := <-agentErrCh; ok && err != nil {
		return fail(fmt.Errorf("agent %s failed: %w", input.Agent.Name(), err))
	}

	if !terminalSeen {
		if err := deliver(core.RunFinished{ThreadID: input.ThreadID, RunID: runID}); err != nil {
			return fail(fmt.Errorf("finish run %s: %w", runID, err))
		}
	}
	return nil
}

// admit decides whether an agent event survives dedup. The runner owns the
// RunStarted lifecycle event, so agent-emitted duplicates are dropped;
// streamed fragments whose correlation id was persisted in an earlier run
// are suppressed start-to-end.
func (r *Runner) admit(ctx context.Context, threadID, runID string, ev core.Event, skip map[string]bool) (bool, error) {
	switch e := ev.(type) {
	case core.RunStarted:
		return false, nil
	case core.TextMessageStart:
		seen, err := r.store.SeenCorrelation(ctx, threadID, e.MessageID)
		if err != nil {
			return false, fmt.Errorf("dedup message %s: %w", e.MessageID, err)
		}
		if seen {
			r.logger.Debug("run %s suppressing duplicate message %s", runID, e.MessageID)
			skip[e.MessageID] = true
			return false, nil
		}
		return true, nil
	case core.ToolCallStart:
		seen, err := r.store.SeenCorrelation(ctx, threadID, e.ToolCallID)
		if err != nil {
			return false, fmt.Errorf("dedup tool call %s: %w", e.ToolCallID, err)
		}
		if seen {
			r.logger.Debug("run %s suppressing duplicate tool call %s", runID, e.ToolCallID)
			skip[e.ToolCallID] = true
			return false, nil
		}
		return true, nil
	case core.TextMessageContent:
		return !skip[e.MessageID], nil
	case core.TextMessageEnd:
		if skip[e.MessageID] {
			delete(skip, e.MessageID)
			return false, nil
		}
		return true, nil
	case core.ToolCallArgs:
		return !skip[e.ToolCallID], nil
	case core.ToolCallEnd:
		if skip[e.ToolCallID] {
			delete(skip, e.ToolCallID)
			return false, nil
		}
		return true, nil
	case core.ToolCallResult:
		if skip[e.ToolCallID] {
			return false, nil
		}
		seen, err := r.store.SeenCorrelation(ctx, threadID, e.MessageID)
		if err != nil {
			return false, fmt.Errorf("dedup tool result %s: %w", e.MessageID, err)
		}
		return !seen, nil
	case core.RunFinished, core.RunError, core.StateSnapshot, core.StateDelta, core.MessagesSnapshot, core.Raw, core.Custom:
		return true, nil
	default:
		return true, nil
	}
}
