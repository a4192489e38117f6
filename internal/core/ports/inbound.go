package ports

import (
	"context"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

// EventStream delivers typed loop events and answer deltas to one
// client connection.
type EventStream interface {
	Event(name string, payload any) error
	Delta(chunk string) error
	Done() error
}

// RunSetup is the resolved state of a run before the stream opens: the
// conversation id must be known for the response header.
type RunSetup struct {
	Agent          *domain.Agent
	ConversationID string
	UseMemory      bool
	UserMessage    string
}

// AgentRunner drives the reasoning loop for one chat request.
type AgentRunner interface {
	// Begin resolves the agent and conversation and persists the user
	// message. Request-level failures surface here, before streaming.
	Begin(ctx context.Context, req domain.AgentRunRequest) (*RunSetup, error)
	// Run executes the bounded loop, emitting events on stream. The
	// stream is always terminated with the done sentinel.
	Run(ctx context.Context, setup *RunSetup, stream EventStream) (*domain.AgentRunResult, error)
}

// ToolExecutor runs one tool invocation and always returns a result
// string; tool-level failures are descriptive strings, not errors.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, input map[string]any, agentID string) string
	Catalog() []domain.ToolSpec
}
