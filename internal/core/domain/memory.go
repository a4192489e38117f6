package domain

import "time"

const (
	MemoryShortTerm    = "short_term"
	MemoryLongTerm     = "long_term"
	MemoryReflection   = "reflection"
	MemoryConsolidated = "consolidated"

	MemoryCategoryEpisodic = "episodic"
	MemoryCategorySemantic = "semantic"
)

// MemoryRecord is an importance-scored, decaying memory owned by one
// agent. DecayFactor starts at 1.0; explicit forget calls reduce it
// until the record is purged (decay < 0.2).
type MemoryRecord struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agent_id"`
	Content        string    `json:"content"`
	MemoryType     string    `json:"memory_type"`
	Category       string    `json:"memory_category"`
	Importance     float64   `json:"importance"`
	DecayFactor    float64   `json:"decay_factor"`
	AccessCount    int       `json:"access_count"`
	Embedding      []float32 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// MemoryMatch pairs a record with its similarity to a query vector.
type MemoryMatch struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}
