package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
)

type MemoryRepository struct {
	db *sql.DB
}

func NewMemoryRepository(db *sql.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

const memoryColumns = "id, agent_id, content, memory_type, memory_category, importance, decay_factor, access_count, embedding, created_at, last_accessed_at"

func (r *MemoryRepository) Insert(ctx context.Context, record *domain.MemoryRecord) error {
	embedding, err := marshalEmbedding(record.Embedding)
	if err != nil {
		return err
	}
	lastAccessed := record.LastAccessedAt
	if lastAccessed.IsZero() {
		lastAccessed = record.CreatedAt
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO memories (id, agent_id, content, memory_type, memory_category, importance, decay_factor, access_count, embedding, created_at, last_accessed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, record.ID, record.AgentID, record.Content, record.MemoryType, record.Category,
		record.Importance, record.DecayFactor, record.AccessCount, embedding, record.CreatedAt, lastAccessed)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.MemoryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+memoryColumns+`
FROM memories
WHERE id = $1
`, id)
	return scanMemoryRow(row, id)
}

func (r *MemoryRepository) GetForAgent(ctx context.Context, agentID, id string) (*domain.MemoryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+memoryColumns+`
FROM memories
WHERE agent_id = $1 AND id = $2
`, agentID, id)
	return scanMemoryRow(row, id)
}

func (r *MemoryRepository) GetManyForAgent(ctx context.Context, agentID string, ids []string) ([]domain.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal memory ids: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+memoryColumns+`
FROM memories
WHERE agent_id = $1 AND id IN (SELECT jsonb_array_elements_text($2::jsonb))
ORDER BY created_at ASC
`, agentID, encoded)
	if err != nil {
		return nil, fmt.Errorf("get memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (r *MemoryRepository) TopByImportance(ctx context.Context, agentID string, limit int) ([]domain.MemoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+memoryColumns+`
FROM memories
WHERE agent_id = $1
ORDER BY importance DESC, created_at DESC
LIMIT $2
`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("top memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (r *MemoryRepository) SearchByContent(ctx context.Context, agentID, query, category string, limit int) ([]domain.MemoryRecord, error) {
	sqlQuery := `
SELECT ` + memoryColumns + `
FROM memories
WHERE agent_id = $1 AND content ILIKE '%' || $2 || '%'
`
	args := []any{agentID, query}
	if category != "" {
		sqlQuery += "AND memory_category = $3\n"
		args = append(args, category)
	}
	sqlQuery += fmt.Sprintf("ORDER BY importance DESC, created_at DESC\nLIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// SearchBySimilarity ranks by cosine similarity computed in process
// over the JSON-encoded embedding column.
func (r *MemoryRepository) SearchBySimilarity(ctx context.Context, agentID string, queryVector []float32, threshold float64, category string, limit int) ([]domain.MemoryMatch, error) {
	sqlQuery := `
SELECT ` + memoryColumns + `
FROM memories
WHERE agent_id = $1 AND embedding IS NOT NULL
`
	args := []any{agentID}
	if category != "" {
		sqlQuery += "AND memory_category = $2\n"
		args = append(args, category)
	}

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity candidates: %w", err)
	}
	defer rows.Close()

	candidates, err := collectMemories(rows)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.MemoryMatch, 0, limit)
	for _, record := range candidates {
		similarity := cosineSimilarity(queryVector, record.Embedding)
		if similarity < threshold {
			continue
		}
		matches = append(matches, domain.MemoryMatch{Record: record, Similarity: similarity})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *MemoryRepository) UpdateDecay(ctx context.Context, id string, decay float64, clearImportance bool) error {
	query := `
UPDATE memories
SET decay_factor = $2
WHERE id = $1
`
	if clearImportance {
		query = `
UPDATE memories
SET decay_factor = $2, importance = 0
WHERE id = $1
`
	}
	res, err := r.db.ExecContext(ctx, query, id, decay)
	if err != nil {
		return fmt.Errorf("update memory decay: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update memory decay rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update memory decay", fmt.Errorf("memory %s", id))
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal memory ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
DELETE FROM memories
WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
`, encoded)
	if err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	return nil
}

func (r *MemoryRepository) IncrementAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal memory ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE memories
SET access_count = access_count + 1, last_accessed_at = $2
WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
`, encoded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment memory access: %w", err)
	}
	return nil
}

func (r *MemoryRepository) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	embedding, err := marshalEmbedding(vector)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE memories
SET embedding = $2
WHERE id = $1
`, id, embedding)
	if err != nil {
		return fmt.Errorf("set memory embedding: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set memory embedding rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "set memory embedding", fmt.Errorf("memory %s", id))
	}
	return nil
}

func marshalEmbedding(vector []float32) (any, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return encoded, nil
}

type memoryScanner interface {
	Scan(dest ...any) error
}

func scanMemory(scanner memoryScanner) (domain.MemoryRecord, error) {
	var (
		record       domain.MemoryRecord
		rawEmbedding []byte
	)
	err := scanner.Scan(
		&record.ID, &record.AgentID, &record.Content, &record.MemoryType, &record.Category,
		&record.Importance, &record.DecayFactor, &record.AccessCount, &rawEmbedding,
		&record.CreatedAt, &record.LastAccessedAt,
	)
	if err != nil {
		return domain.MemoryRecord{}, err
	}
	if len(rawEmbedding) > 0 {
		if err := json.Unmarshal(rawEmbedding, &record.Embedding); err != nil {
			return domain.MemoryRecord{}, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	return record, nil
}

func scanMemoryRow(row *sql.Row, id string) (*domain.MemoryRecord, error) {
	record, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get memory", fmt.Errorf("memory %s", id))
		}
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &record, nil
}

func collectMemories(rows *sql.Rows) ([]domain.MemoryRecord, error) {
	out := make([]domain.MemoryRecord, 0)
	for rows.Next() {
		record, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
