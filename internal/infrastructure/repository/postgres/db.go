package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects through the pgx stdlib driver and verifies the
// connection before returning.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL,
		model TEXT NOT NULL,
		tools JSONB NOT NULL DEFAULT '[]',
		avatar_url TEXT NOT NULL DEFAULT '',
		chat_avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		agent_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reasoning_steps (
		conversation_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		step_number INT NOT NULL,
		thought TEXT NOT NULL,
		plan JSONB NOT NULL DEFAULT '[]',
		criticism TEXT NOT NULL DEFAULT '',
		action JSONB NOT NULL,
		action_result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (conversation_id, agent_id, step_number)
	)`,
	`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		content TEXT NOT NULL,
		memory_type TEXT NOT NULL,
		memory_category TEXT NOT NULL,
		importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		decay_factor DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		access_count INT NOT NULL DEFAULT 0,
		embedding JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories (agent_id, importance DESC)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		priority INT NOT NULL DEFAULT 0,
		parent_task_id TEXT,
		result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_agent_status ON tasks (agent_id, status, priority DESC, created_at)`,
	`CREATE TABLE IF NOT EXISTS council_sessions (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		lead_agent_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		user_request TEXT NOT NULL,
		synthesis TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS council_session_agents (
		session_id TEXT NOT NULL REFERENCES council_sessions(id),
		agent_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (session_id, agent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES council_sessions(id),
		from_agent_id TEXT NOT NULL,
		to_agent_id TEXT,
		message_type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema applies idempotent DDL. Kept in code so a fresh
// database works without a migration step.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
