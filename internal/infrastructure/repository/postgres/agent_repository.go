package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type AgentRepository struct {
	db *sql.DB
}

func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = "id, name, role, system_prompt, model, tools, avatar_url, chat_avatar_url, created_at"

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+agentColumns+`
FROM agents
WHERE id = $1
`, id)
	return scanAgent(row, id)
}

func (r *AgentRepository) GetByName(ctx context.Context, name string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+agentColumns+`
FROM agents
WHERE name = $1
`, name)
	return scanAgent(row, name)
}

func (r *AgentRepository) EnsureAgent(ctx context.Context, agent *domain.Agent) error {
	tools, err := json.Marshal(agent.Tools)
	if err != nil {
		return fmt.Errorf("marshal agent tools: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO agents (id, name, role, system_prompt, model, tools, avatar_url, chat_avatar_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (name) DO NOTHING
`, agent.ID, agent.Name, agent.Role, agent.SystemPrompt, agent.Model, tools, agent.AvatarURL, agent.ChatAvatarURL, agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("ensure agent: %w", err)
	}
	return nil
}

func scanAgent(row *sql.Row, key string) (*domain.Agent, error) {
	var (
		agent    domain.Agent
		rawTools []byte
	)
	err := row.Scan(
		&agent.ID, &agent.Name, &agent.Role, &agent.SystemPrompt, &agent.Model,
		&rawTools, &agent.AvatarURL, &agent.ChatAvatarURL, &agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAgentNotFound, "get agent", fmt.Errorf("agent %s", key))
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	if len(rawTools) > 0 {
		if err := json.Unmarshal(rawTools, &agent.Tools); err != nil {
			return nil, fmt.Errorf("unmarshal agent tools: %w", err)
		}
	}
	return &agent, nil
}
