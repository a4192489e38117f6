package domain

import "time"

type ActionType string

const (
	ActionTool     ActionType = "tool"
	ActionRespond  ActionType = "respond"
	ActionContinue ActionType = "continue"
)

// Action is the tagged variant a reasoning step resolves to.
type Action struct {
	Type      ActionType     `json:"type"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// ReasoningStep is one structured thought/plan/criticism/action turn,
// keyed by (conversation, agent, step number) within a run.
type ReasoningStep struct {
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	StepNumber     int       `json:"step_number"`
	Thought        string    `json:"thought"`
	Plan           []string  `json:"plan,omitempty"`
	Criticism      string    `json:"criticism,omitempty"`
	Action         Action    `json:"action"`
	ActionResult   string    `json:"action_result,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type AgentRunRequest struct {
	AgentID        string `json:"agentId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	UseMemory      bool   `json:"useMemory"`
}

type AgentLimits struct {
	MaxIterations    int
	RunTimeout       time.Duration
	PlannerTimeout   time.Duration
	ToolTimeout      time.Duration
	HistoryMessages  int
	MemoryTopK       int
	StreamChunkChars int
	StreamChunkDelay time.Duration
}

type AgentRunResult struct {
	ConversationID string   `json:"conversation_id"`
	Answer         string   `json:"answer"`
	Iterations     int      `json:"iterations"`
	ToolsInvoked   []string `json:"tools_invoked,omitempty"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

// CompletionResult is what the gateway returns for a forced
// structured-reasoning call: either the function-call arguments or
// plain assistant text when the model ignored the discipline.
type CompletionResult struct {
	HasFunctionCall   bool
	FunctionName      string
	FunctionArguments string
	Content           string
}
