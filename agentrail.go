// Package agentrail provides a high-level façade over the run orchestrator
// and thread event log, enabling rapid construction of agent-backed
// applications with durable, replayable conversation threads. Most
// applications interact with this package by:
//  1. Creating an AgentRail via New() (optionally overriding the default
//     in-memory thread store)
//  2. Starting agent runs asynchronously (Run) or synchronously (RunSync)
//  3. Replaying threads for reconnecting consumers (Connect)
//
// The façade delegates orchestration to runner.Runner while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply the SQLite-backed
// thread store and a structured logger.
package agentrail

import (
	"context"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/logging"
	"github.com/hupe1980/agentrail/runner"
	"github.com/hupe1980/agentrail/thread"
)

// Options configures the AgentRail instance.
type Options struct {
	// Store holds threads and their event logs (defaults to the in-memory
	// implementation if not provided).
	Store core.ThreadStore

	// EventBufferSize sets the channel buffer size for run event delivery.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentRail is the high-level façade aggregating the orchestrator and the
// thread store.
type AgentRail struct {
	opts   Options
	runner *runner.Runner
}

// New creates a new AgentRail instance with optional overrides. An unset
// store is initialized with the in-memory implementation.
func New(optFns ...func(o *Options)) *AgentRail {
	opts := Options{
		Store:           thread.NewInMemoryStore(),
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(opts.Store, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
	})

	return &AgentRail{opts: opts, runner: r}
}

// Run starts an asynchronous agent run returning the run id plus event &
// error channels.
func (a *AgentRail) Run(ctx context.Context, input core.RunInput) (string, <-chan core.Event, <-chan error, error) {
	return a.runner.Run(ctx, input)
}

// RunSync is a synchronous helper that drains the async channels,
// accumulates the run's events and returns the run id.
func (a *AgentRail) RunSync(ctx context.Context, input core.RunInput) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := a.runner.Run(ctx, input)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			// Context cancelled - return events collected so far
			return runID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed - check for terminal error
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}
			events = append(events, event)

		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// Cancel requests cooperative termination of an in-flight run.
func (a *AgentRail) Cancel(runID string) error { return a.runner.Cancel(runID) }

// Connect replays the thread's event sequence to a new consumer, live when
// a run is in flight.
func (a *AgentRail) Connect(ctx context.Context, threadID string, scope *core.Scope) (<-chan core.Event, error) {
	return a.runner.Connect(ctx, threadID, scope)
}

// ListThreads returns the page of threads visible to scope.
func (a *AgentRail) ListThreads(ctx context.Context, scope *core.Scope, limit, offset int) (core.ThreadPage, error) {
	return a.runner.ListThreads(ctx, scope, limit, offset)
}

// GetThreadMetadata returns the thread's metadata, or (nil, nil) when the
// thread does not exist or is not visible to scope.
func (a *AgentRail) GetThreadMetadata(ctx context.Context, threadID string, scope *core.Scope) (*core.ThreadMetadata, error) {
	return a.runner.GetThreadMetadata(ctx, threadID, scope)
}

// DeleteThread removes the thread if scope authorizes it; absent or
// invisible threads are a silent no-op.
func (a *AgentRail) DeleteThread(ctx context.Context, threadID string, scope *core.Scope) error {
	return a.runner.DeleteThread(ctx, threadID, scope)
}

// Reset clears the underlying store. Intended for tests.
func (a *AgentRail) Reset(ctx context.Context) error { return a.opts.Store.Reset(ctx) }

// Close releases the underlying store.
func (a *AgentRail) Close() error { return a.opts.Store.Close() }
