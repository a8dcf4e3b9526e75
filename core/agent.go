package core

import "context"

// RunInput describes one run request handed to the orchestrator.
type RunInput struct {
	// ThreadID addresses the target thread. The thread is created on first
	// use with the scope's owner identity.
	ThreadID string

	// Agent produces this run's events.
	Agent Agent

	// Messages supply conversational context. Messages whose id has already
	// been persisted to the thread are used for context only and are never
	// re-appended.
	Messages []Message

	// State is an opaque state bag forwarded to the agent.
	State map[string]any

	// Scope authorizes the run. nil is administrative.
	Scope *Scope

	// Properties are stored on the thread when this run creates it.
	Properties map[string]any
}

// AgentRequest is the resolved view an Agent receives: the full derived
// message history of the thread (persisted history plus this run's fresh
// input) and the run identifiers.
type AgentRequest struct {
	ThreadID string
	RunID    string
	Messages []Message
	State    map[string]any
}

// Agent produces the event stream of a single run.
//
// Semantics follow the channel conventions used throughout the module: the
// events channel is closed when the agent is finished, the error channel is
// buffered size 1 and carries at most one terminal error before closing.
// Agents may emit their own RunStarted/RunFinished lifecycle events; the
// orchestrator supplies any the agent omits.
type Agent interface {
	Name() string
	Run(ctx context.Context, req AgentRequest) (<-chan Event, <-chan error)
}
