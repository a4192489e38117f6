package domain

import "time"

const (
	CouncilStatusActive    = "active"
	CouncilStatusConcluded = "concluded"
)

const (
	CouncilMessageSummon    = "summon"
	CouncilMessageDelegate  = "delegate"
	CouncilMessageInsight   = "insight"
	CouncilMessageResponse  = "response"
	CouncilMessageSynthesis = "synthesis"
)

// CouncilSession scopes one multi-agent delegation context. The active
// agent set grows via summon and is idempotent.
type CouncilSession struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	LeadAgentID    string    `json:"lead_agent_id"`
	ActiveAgentIDs []string  `json:"active_agent_ids"`
	Status         string    `json:"status"`
	UserRequest    string    `json:"user_request"`
	Synthesis      string    `json:"synthesis,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AgentMessage is one message within a council session. A nil
// ToAgentID means broadcast, used for the final synthesis.
type AgentMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id,omitempty"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}
