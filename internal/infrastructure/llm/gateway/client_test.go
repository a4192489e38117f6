package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestCompleteReasoningForcesFunctionCall(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"function":{"name":"agent_reasoning","arguments":"{\"thought\":\"hi\"}"}}]}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "embed-model", testExecutor())
	result, err := client.CompleteReasoning(context.Background(), "chat-model", []domain.ChatMessage{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("CompleteReasoning() error = %v", err)
	}
	if !result.HasFunctionCall || result.FunctionName != "agent_reasoning" {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.FunctionArguments, "thought") {
		t.Fatalf("arguments = %q", result.FunctionArguments)
	}

	choice, _ := captured["tool_choice"].(map[string]any)
	fn, _ := choice["function"].(map[string]any)
	if fn["name"] != "agent_reasoning" {
		t.Fatalf("tool_choice = %v", captured["tool_choice"])
	}
}

func TestCompleteReasoningFallsBackToContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"plain answer"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "embed-model", testExecutor())
	result, err := client.CompleteReasoning(context.Background(), "chat-model", nil)
	if err != nil {
		t.Fatalf("CompleteReasoning() error = %v", err)
	}
	if result.HasFunctionCall || result.Content != "plain answer" {
		t.Fatalf("result = %+v", result)
	}
}

func TestCompleteReasoningMapsQuotaStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusPaymentRequired, domain.ErrBillingRequired},
		{http.StatusInternalServerError, domain.ErrUpstream},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		client := New(server.URL, "test-key", "embed-model", testExecutor())
		_, err := client.CompleteReasoning(context.Background(), "chat-model", nil)
		server.Close()
		if !domain.IsKind(err, tc.kind) {
			t.Errorf("status %d: err = %v, want kind %v", tc.status, err, tc.kind)
		}
	}
}

func TestCompleteReasoningDoesNotRetryRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "embed-model", testExecutor())
	_, _ = client.CompleteReasoning(context.Background(), "chat-model", nil)
	if calls != 1 {
		t.Fatalf("429 must not be retried, saw %d calls", calls)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "embed-model", testExecutor())
	text, err := client.Complete(context.Background(), "chat-model", nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "recovered" || calls != 2 {
		t.Fatalf("text = %q, calls = %d", text, calls)
	}
}

func TestEmbedTextReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["model"] != "embed-model" {
			t.Errorf("model = %v", payload["model"])
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", "embed-model", testExecutor())
	vector, err := client.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedText() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("vector = %v", vector)
	}
}
