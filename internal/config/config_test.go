package config

import "testing"

func TestLoadIncludesAgentLoopDefaults(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "")
	t.Setenv("AGENT_RUN_TIMEOUT_SECONDS", "")
	t.Setenv("STREAM_CHUNK_CHARS", "")
	t.Setenv("STREAM_CHUNK_DELAY_MS", "")
	t.Setenv("DEFAULT_AGENT_NAME", "")

	cfg := Load()
	if cfg.AgentMaxIterations != 5 {
		t.Fatalf("expected default max iterations 5, got %d", cfg.AgentMaxIterations)
	}
	if cfg.AgentRunTimeoutSeconds != 120 {
		t.Fatalf("expected default run timeout 120s, got %d", cfg.AgentRunTimeoutSeconds)
	}
	if cfg.StreamChunkChars != 3 {
		t.Fatalf("expected default chunk chars 3, got %d", cfg.StreamChunkChars)
	}
	if cfg.StreamChunkDelayMs != 10 {
		t.Fatalf("expected default chunk delay 10ms, got %d", cfg.StreamChunkDelayMs)
	}
	if cfg.DefaultAgentName != "Dehtyar" {
		t.Fatalf("expected default agent Dehtyar, got %q", cfg.DefaultAgentName)
	}
}

func TestLoadParsesAgentLoopOverrides(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "3")
	t.Setenv("AGENT_MEMORY_TOP_K", "8")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("API_MAX_CONCURRENT", "16")
	t.Setenv("LEAD_AGENT_NAME", "Dohar")

	cfg := Load()
	if cfg.AgentMaxIterations != 3 {
		t.Fatalf("expected max iterations 3, got %d", cfg.AgentMaxIterations)
	}
	if cfg.AgentMemoryTopK != 8 {
		t.Fatalf("expected memory top k 8, got %d", cfg.AgentMemoryTopK)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIMaxConcurrent != 16 {
		t.Fatalf("expected max concurrent 16, got %d", cfg.APIMaxConcurrent)
	}
	if cfg.LeadAgentName != "Dohar" {
		t.Fatalf("expected lead agent override, got %q", cfg.LeadAgentName)
	}
}
