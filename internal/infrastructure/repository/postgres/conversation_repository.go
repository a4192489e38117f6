package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (id, title, created_at)
VALUES ($1,$2,$3)
`, conv.ID, conv.Title, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, created_at
FROM conversations
WHERE id = $1
`, id)

	var conv domain.Conversation
	if err := row.Scan(&conv.ID, &conv.Title, &conv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get conversation", fmt.Errorf("conversation %s", id))
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg domain.Message) error {
	agentID := sql.NullString{String: msg.AgentID, Valid: msg.AgentID != ""}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, agent_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, msg.ID, msg.ConversationID, agentID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListRecentMessages returns the newest messages in chronological
// order: the window is selected newest-first, then flipped.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, agent_id, role, content, created_at
FROM (
	SELECT id, conversation_id, agent_id, role, content, created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at DESC
	LIMIT $2
) window
ORDER BY created_at ASC
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var (
			msg     domain.Message
			agentID sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &agentID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.AgentID = agentID.String
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
