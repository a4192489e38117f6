package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, agent_id, title, description, status, priority, parent_task_id, result, created_at, completed_at"

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	parentID := sql.NullString{String: task.ParentTaskID, Valid: task.ParentTaskID != ""}
	result := sql.NullString{String: task.Result, Valid: task.Result != ""}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, agent_id, title, description, status, priority, parent_task_id, result, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, task.ID, task.AgentID, task.Title, task.Description, string(task.Status), task.Priority, parentID, result, task.CreatedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE id = $1
`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get task", fmt.Errorf("task %s", id))
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, agentID string, status domain.TaskStatus, parentOnly bool, limit int) ([]domain.Task, error) {
	query := `
SELECT ` + taskColumns + `
FROM tasks
WHERE agent_id = $1
`
	args := []any{agentID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf("AND status = $%d\n", len(args))
	}
	if parentOnly {
		query += "AND parent_task_id IS NULL\n"
	}
	args = append(args, limit)
	query += fmt.Sprintf("ORDER BY priority DESC, created_at DESC\nLIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *TaskRepository) ListChildren(ctx context.Context, parentTaskID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE parent_task_id = $1
ORDER BY priority DESC, created_at ASC
`, parentTaskID)
	if err != nil {
		return nil, fmt.Errorf("list child tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus, result string) (*domain.Task, error) {
	var completedAt any
	if status == domain.TaskStatusCompleted {
		completedAt = time.Now().UTC()
	}
	// Empty status means a result-only update; completed_at is only
	// ever stamped, never cleared.
	row := r.db.QueryRowContext(ctx, `
UPDATE tasks
SET status = COALESCE(NULLIF($2, ''), status),
    result = COALESCE(NULLIF($3, ''), result),
    completed_at = COALESCE($4, completed_at)
WHERE id = $1
RETURNING `+taskColumns+`
`, id, string(status), result, completedAt)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "update task", fmt.Errorf("task %s", id))
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &task, nil
}

// NextPending claims the highest-priority pending task in one
// statement so concurrent callers never pick the same task.
func (r *TaskRepository) NextPending(ctx context.Context, agentID string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE tasks
SET status = 'in_progress'
WHERE id = (
	SELECT id
	FROM tasks
	WHERE agent_id = $1 AND status = 'pending'
	ORDER BY priority DESC, created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING `+taskColumns+`
`, agentID)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "next pending task", fmt.Errorf("agent %s", agentID))
		}
		return nil, fmt.Errorf("next pending task: %w", err)
	}
	return &task, nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(scanner taskScanner) (domain.Task, error) {
	var (
		task        domain.Task
		parentID    sql.NullString
		result      sql.NullString
		completedAt sql.NullTime
	)
	err := scanner.Scan(
		&task.ID, &task.AgentID, &task.Title, &task.Description, &task.Status,
		&task.Priority, &parentID, &result, &task.CreatedAt, &completedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}
	task.ParentTaskID = parentID.String
	task.Result = result.String
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}
