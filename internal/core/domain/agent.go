package domain

import "time"

// Agent is a persona configuration. Read-only to the reasoning loop.
type Agent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	SystemPrompt  string    `json:"system_prompt"`
	Model         string    `json:"model"`
	Tools         []string  `json:"tools,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	ChatAvatarURL string    `json:"chat_avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one append-only conversation turn. Ordering by CreatedAt
// is the conversation's canonical order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
