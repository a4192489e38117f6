package domain

// SSE event names emitted by the reasoning loop.
const (
	EventIteration        = "iteration"
	EventReasoning        = "reasoning"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventCouncilStart     = "council_start"
	EventAgentSummoned    = "agent_summoned"
	EventAgentThinking    = "agent_thinking"
	EventAgentMessage     = "agent_message"
	EventCouncilSynthesis = "council_synthesis"
	EventError            = "error"
)

type IterationEvent struct {
	Step int `json:"step"`
	Max  int `json:"max"`
}

type ReasoningEvent struct {
	Step      int      `json:"step"`
	Thought   string   `json:"thought"`
	Plan      []string `json:"plan,omitempty"`
	Criticism string   `json:"criticism,omitempty"`
	Action    Action   `json:"action"`
}

type ToolCallEvent struct {
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"input"`
	IsCouncil bool           `json:"isCouncil,omitempty"`
}

type ToolResultEvent struct {
	Tool      string `json:"tool"`
	Result    string `json:"result"`
	IsCouncil bool   `json:"isCouncil,omitempty"`
}

type CouncilStartEvent struct {
	SessionID     string `json:"sessionId"`
	LeadAgentID   string `json:"leadAgentId"`
	LeadAgentName string `json:"leadAgentName"`
	UserRequest   string `json:"userRequest"`
}

type AgentSummonedEvent struct {
	AgentID       string `json:"agentId"`
	AgentName     string `json:"agentName"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	ChatAvatarURL string `json:"chat_avatar_url,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type AgentThinkingEvent struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

type AgentMessageEvent struct {
	FromAgentID   string `json:"fromAgentId"`
	FromAgentName string `json:"fromAgentName"`
	Content       string `json:"content"`
	MessageType   string `json:"messageType"`
}

type CouncilSynthesisEvent struct {
	Synthesis string `json:"synthesis"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
