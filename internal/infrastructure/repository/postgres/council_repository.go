package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type CouncilRepository struct {
	db *sql.DB
}

func NewCouncilRepository(db *sql.DB) *CouncilRepository {
	return &CouncilRepository{db: db}
}

func (r *CouncilRepository) CreateSession(ctx context.Context, session *domain.CouncilSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO council_sessions (id, conversation_id, lead_agent_id, status, user_request, synthesis, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, session.ID, session.ConversationID, session.LeadAgentID, session.Status, session.UserRequest,
		sql.NullString{String: session.Synthesis, Valid: session.Synthesis != ""}, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("create council session: %w", err)
	}
	for _, agentID := range session.ActiveAgentIDs {
		if err := r.AddActiveAgent(ctx, session.ID, agentID); err != nil {
			return err
		}
	}
	return nil
}

func (r *CouncilRepository) AddActiveAgent(ctx context.Context, sessionID, agentID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO council_session_agents (session_id, agent_id, joined_at)
VALUES ($1,$2,$3)
ON CONFLICT (session_id, agent_id) DO NOTHING
`, sessionID, agentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add council agent: %w", err)
	}
	return nil
}

func (r *CouncilRepository) ConcludeSession(ctx context.Context, sessionID, synthesis string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE council_sessions
SET status = 'concluded', synthesis = $2
WHERE id = $1
`, sessionID, synthesis)
	if err != nil {
		return fmt.Errorf("conclude council session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conclude council session rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "conclude council session", fmt.Errorf("session %s", sessionID))
	}
	return nil
}

func (r *CouncilRepository) AppendMessage(ctx context.Context, msg domain.AgentMessage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO agent_messages (id, session_id, from_agent_id, to_agent_id, message_type, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, msg.ID, msg.SessionID, msg.FromAgentID,
		sql.NullString{String: msg.ToAgentID, Valid: msg.ToAgentID != ""},
		msg.MessageType, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append council message: %w", err)
	}
	return nil
}

func (r *CouncilRepository) GetSession(ctx context.Context, sessionID string) (*domain.CouncilSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, conversation_id, lead_agent_id, status, user_request, synthesis, created_at
FROM council_sessions
WHERE id = $1
`, sessionID)

	var (
		session   domain.CouncilSession
		synthesis sql.NullString
	)
	err := row.Scan(&session.ID, &session.ConversationID, &session.LeadAgentID,
		&session.Status, &session.UserRequest, &synthesis, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get council session", fmt.Errorf("session %s", sessionID))
		}
		return nil, fmt.Errorf("get council session: %w", err)
	}
	session.Synthesis = synthesis.String

	rows, err := r.db.QueryContext(ctx, `
SELECT agent_id
FROM council_session_agents
WHERE session_id = $1
ORDER BY joined_at ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list council agents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var agentID string
		if err := rows.Scan(&agentID); err != nil {
			return nil, fmt.Errorf("scan council agent: %w", err)
		}
		session.ActiveAgentIDs = append(session.ActiveAgentIDs, agentID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate council agents: %w", err)
	}
	return &session, nil
}
