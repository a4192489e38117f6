package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
	"github.com/jjyaz/dohars-world/internal/observability/metrics"
)

type fakeRunner struct {
	beginErr error
	setup    *ports.RunSetup
	result   *domain.AgentRunResult
	runErr   error
	lastReq  domain.AgentRunRequest

	script func(stream ports.EventStream)
}

func (f *fakeRunner) Begin(_ context.Context, req domain.AgentRunRequest) (*ports.RunSetup, error) {
	f.lastReq = req
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if f.setup != nil {
		return f.setup, nil
	}
	return &ports.RunSetup{
		Agent:          &domain.Agent{ID: "agent-1", Name: "Dehtyar"},
		ConversationID: "conv-1",
		UseMemory:      req.UseMemory,
		UserMessage:    req.Message,
	}, nil
}

func (f *fakeRunner) Run(_ context.Context, setup *ports.RunSetup, stream ports.EventStream) (*domain.AgentRunResult, error) {
	defer stream.Done()
	if f.script != nil {
		f.script(stream)
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.AgentRunResult{ConversationID: setup.ConversationID, Answer: "ok", Iterations: 1}, nil
}

type fakeTools struct {
	lastTool  string
	lastInput map[string]any
	result    string
}

func (f *fakeTools) Execute(_ context.Context, toolName string, input map[string]any, _ string) string {
	f.lastTool = toolName
	f.lastInput = input
	return f.result
}

func (f *fakeTools) Catalog() []domain.ToolSpec {
	return []domain.ToolSpec{
		{Name: "calculator", Description: "Evaluate a math expression.", Required: []string{"expression"}},
	}
}

func newTestRouter(runner *fakeRunner, tools *fakeTools) http.Handler {
	return NewRouter(runner, tools, metrics.NewHTTPServerMetrics("api-test"), 0, 0, 0).Handler()
}

func TestAgentChatStreamsEventsAndDeltas(t *testing.T) {
	runner := &fakeRunner{
		script: func(stream ports.EventStream) {
			stream.Event(domain.EventIteration, domain.IterationEvent{Step: 1, Max: 5})
			stream.Delta("Hel")
			stream.Delta("lo")
		},
		result: &domain.AgentRunResult{ConversationID: "conv-1", Answer: "Hello", Iterations: 1},
	}
	handler := newTestRouter(runner, &fakeTools{})

	body := bytes.NewBufferString(`{"message":"hi","useMemory":true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/agent/chat", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("X-Conversation-Id"); got != "conv-1" {
		t.Fatalf("expected conversation id header conv-1, got %q", got)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", got)
	}

	payload := res.Body.String()
	if !strings.Contains(payload, "event: iteration\n") {
		t.Fatalf("expected iteration event in stream, got:\n%s", payload)
	}
	if !strings.Contains(payload, `data: {"choices":[{"delta":{"content":"Hel"}}]}`) {
		t.Fatalf("expected delta chunk in stream, got:\n%s", payload)
	}
	if !strings.HasSuffix(payload, "data: [DONE]\n\n") {
		t.Fatalf("expected done sentinel at stream end, got:\n%s", payload)
	}
}

func TestAgentChatMemoryDefaultsOn(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"omitted", `{"message":"hi"}`, true},
		{"explicit off", `{"message":"hi","useMemory":false}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			handler := newTestRouter(runner, &fakeTools{})

			req := httptest.NewRequest(http.MethodPost, "/v1/agent/chat", strings.NewReader(tc.body))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.Code)
			}
			if runner.lastReq.UseMemory != tc.want {
				t.Fatalf("useMemory = %v, want %v", runner.lastReq.UseMemory, tc.want)
			}
		})
	}
}

func TestAgentChatRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&fakeRunner{}, &fakeTools{})

	req := httptest.NewRequest(http.MethodPost, "/v1/agent/chat", strings.NewReader("{"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}
}

func TestAgentChatMapsBeginErrors(t *testing.T) {
	cases := []struct {
		name     string
		beginErr error
		want     int
	}{
		{"empty message", domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required")), http.StatusBadRequest},
		{"unknown agent", domain.WrapError(domain.ErrAgentNotFound, "chat", errors.New("no such persona")), http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&fakeRunner{beginErr: tc.beginErr}, &fakeTools{})

			req := httptest.NewRequest(http.MethodPost, "/v1/agent/chat", strings.NewReader(`{"message":"hi"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp["error"] == "" {
				t.Fatalf("expected error message in response")
			}
		})
	}
}

func TestAgentChatRequiresPost(t *testing.T) {
	handler := newTestRouter(&fakeRunner{}, &fakeTools{})

	req := httptest.NewRequest(http.MethodGet, "/v1/agent/chat", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestExecuteToolReturnsResult(t *testing.T) {
	tools := &fakeTools{result: "4"}
	handler := newTestRouter(&fakeRunner{}, tools)

	body := strings.NewReader(`{"toolName":"calculator","toolInput":{"expression":"2+2"},"agentId":"agent-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["result"] != "4" {
		t.Fatalf("expected result 4, got %q", resp["result"])
	}
	if tools.lastTool != "calculator" {
		t.Fatalf("expected calculator dispatch, got %q", tools.lastTool)
	}
	if tools.lastInput["expression"] != "2+2" {
		t.Fatalf("expected expression forwarded, got %v", tools.lastInput)
	}
}

func TestExecuteToolRequiresName(t *testing.T) {
	handler := newTestRouter(&fakeRunner{}, &fakeTools{})

	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", strings.NewReader(`{"toolInput":{}}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing tool name, got %d", res.Code)
	}
}

func TestListToolsReturnsCatalog(t *testing.T) {
	handler := newTestRouter(&fakeRunner{}, &fakeTools{})

	req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"calculator"`) {
		t.Fatalf("expected calculator tool in catalog, got %s", res.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeRunner{}, &fakeTools{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
