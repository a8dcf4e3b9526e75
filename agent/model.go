package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instructions string
	Tools        []model.ToolDefinition
}

// ModelAgent bridges a language model into the orchestrator: each run
// forwards the thread's conversation to the model and streams the model's
// message and tool call events back unchanged. The orchestrator handles the
// run lifecycle, dedup and compaction around it.
type ModelAgent struct {
	name         string
	llm          model.Model
	instructions string
	tools        []model.ToolDefinition
}

// Compile-time contract check.
var _ core.Agent = (*ModelAgent)(nil)

// NewModelAgent creates a new model-backed agent. The default system
// instruction identifies the agent by name; override it via options.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instructions: fmt.Sprintf("You are %s, a helpful AI assistant.", name),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelAgent{
		name:         name,
		llm:          llm,
		instructions: opts.Instructions,
		tools:        opts.Tools,
	}
}

// Name returns the agent's human-readable name.
func (a *ModelAgent) Name() string { return a.name }

// Run implements core.Agent by streaming one model turn.
func (a *ModelAgent) Run(ctx context.Context, req core.AgentRequest) (<-chan core.Event, <-chan error) {
	return a.llm.Stream(ctx, model.Request{
		Instructions: a.instructions,
		Messages:     req.Messages,
		Tools:        a.tools,
	})
}
