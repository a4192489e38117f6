package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type ReasoningRepository struct {
	db *sql.DB
}

func NewReasoningRepository(db *sql.DB) *ReasoningRepository {
	return &ReasoningRepository{db: db}
}

func (r *ReasoningRepository) CreateStep(ctx context.Context, step *domain.ReasoningStep) error {
	plan, err := json.Marshal(step.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	action, err := json.Marshal(step.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO reasoning_steps (conversation_id, agent_id, step_number, thought, plan, criticism, action, action_result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, step.ConversationID, step.AgentID, step.StepNumber, step.Thought, plan, step.Criticism, action,
		sql.NullString{String: step.ActionResult, Valid: step.ActionResult != ""}, step.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reasoning step: %w", err)
	}
	return nil
}

func (r *ReasoningRepository) UpdateActionResult(ctx context.Context, conversationID, agentID string, stepNumber int, result string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE reasoning_steps
SET action_result = $4
WHERE conversation_id = $1 AND agent_id = $2 AND step_number = $3
`, conversationID, agentID, stepNumber, result)
	if err != nil {
		return fmt.Errorf("update action result: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action result rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update action result",
			fmt.Errorf("step %d of conversation %s", stepNumber, conversationID))
	}
	return nil
}

func (r *ReasoningRepository) GetStep(ctx context.Context, conversationID, agentID string, stepNumber int) (*domain.ReasoningStep, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT conversation_id, agent_id, step_number, thought, plan, criticism, action, action_result, created_at
FROM reasoning_steps
WHERE conversation_id = $1 AND agent_id = $2 AND step_number = $3
`, conversationID, agentID, stepNumber)

	var (
		step         domain.ReasoningStep
		rawPlan      []byte
		rawAction    []byte
		actionResult sql.NullString
	)
	err := row.Scan(&step.ConversationID, &step.AgentID, &step.StepNumber, &step.Thought,
		&rawPlan, &step.Criticism, &rawAction, &actionResult, &step.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get reasoning step",
				fmt.Errorf("step %d of conversation %s", stepNumber, conversationID))
		}
		return nil, fmt.Errorf("get reasoning step: %w", err)
	}
	if len(rawPlan) > 0 {
		if err := json.Unmarshal(rawPlan, &step.Plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	if len(rawAction) > 0 {
		if err := json.Unmarshal(rawAction, &step.Action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
	}
	step.ActionResult = actionResult.String
	return &step, nil
}
