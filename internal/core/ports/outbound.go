package ports

import (
	"context"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

// CompletionClient talks to the hosted LLM gateway.
type CompletionClient interface {
	// CompleteReasoning forces the structured agent_reasoning function
	// call and returns either its arguments or free text.
	CompleteReasoning(ctx context.Context, model string, messages []domain.ChatMessage) (*domain.CompletionResult, error)
	// Complete returns a plain text completion (council replies,
	// reflection and consolidation syntheses).
	Complete(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Embedder builds a vector for a text, best-effort.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SearchProvider is the web search/scrape collaborator.
type SearchProvider interface {
	Configured() bool
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	Scrape(ctx context.Context, url string) (*domain.ScrapedPage, error)
}

// AgentStore reads persona configurations.
type AgentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByName(ctx context.Context, name string) (*domain.Agent, error)
	// EnsureAgent inserts the persona when no agent with its name
	// exists yet; used for roster seeding.
	EnsureAgent(ctx context.Context, agent *domain.Agent) error
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, msg domain.Message) error
	// ListRecentMessages returns up to limit most recent messages in
	// chronological order.
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// ReasoningStore persists reasoning steps keyed by
// (conversation, agent, step number).
type ReasoningStore interface {
	CreateStep(ctx context.Context, step *domain.ReasoningStep) error
	UpdateActionResult(ctx context.Context, conversationID, agentID string, stepNumber int, result string) error
	GetStep(ctx context.Context, conversationID, agentID string, stepNumber int) (*domain.ReasoningStep, error)
}

// MemoryStore persists agent memory records.
type MemoryStore interface {
	Insert(ctx context.Context, record *domain.MemoryRecord) error
	Get(ctx context.Context, id string) (*domain.MemoryRecord, error)
	GetForAgent(ctx context.Context, agentID, id string) (*domain.MemoryRecord, error)
	GetManyForAgent(ctx context.Context, agentID string, ids []string) ([]domain.MemoryRecord, error)
	TopByImportance(ctx context.Context, agentID string, limit int) ([]domain.MemoryRecord, error)
	SearchByContent(ctx context.Context, agentID, query, category string, limit int) ([]domain.MemoryRecord, error)
	SearchBySimilarity(ctx context.Context, agentID string, queryVector []float32, threshold float64, category string, limit int) ([]domain.MemoryMatch, error)
	UpdateDecay(ctx context.Context, id string, decay float64, clearImportance bool) error
	Delete(ctx context.Context, ids ...string) error
	IncrementAccess(ctx context.Context, ids []string) error
	SetEmbedding(ctx context.Context, id string, vector []float32) error
}

// TaskStore persists the task tree.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, agentID string, status domain.TaskStatus, parentOnly bool, limit int) ([]domain.Task, error)
	ListChildren(ctx context.Context, parentTaskID string) ([]domain.Task, error)
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, result string) (*domain.Task, error)
	// NextPending atomically selects the highest-priority, oldest
	// pending task and flips it to in_progress. Returns ErrNotFound
	// when no pending task exists.
	NextPending(ctx context.Context, agentID string) (*domain.Task, error)
}

// CouncilStore persists delegation sessions and their messages.
type CouncilStore interface {
	CreateSession(ctx context.Context, session *domain.CouncilSession) error
	// AddActiveAgent is an idempotent union on the session's active set.
	AddActiveAgent(ctx context.Context, sessionID, agentID string) error
	ConcludeSession(ctx context.Context, sessionID, synthesis string) error
	AppendMessage(ctx context.Context, msg domain.AgentMessage) error
	GetSession(ctx context.Context, sessionID string) (*domain.CouncilSession, error)
}

// MaintenanceQueue carries memory-maintenance jobs to the worker.
type MaintenanceQueue interface {
	PublishMemoryStored(ctx context.Context, memoryID string) error
	SubscribeMemoryStored(ctx context.Context, handler func(context.Context, string) error) error
}
