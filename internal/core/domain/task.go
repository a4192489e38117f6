package domain

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is a node in a self-referential goal/subtask tree. When every
// direct child of a parent is completed the parent is completed too,
// one level up only.
type Task struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	Priority     int        `json:"priority"`
	ParentTaskID string     `json:"parent_task_id,omitempty"`
	Result       string     `json:"result,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
