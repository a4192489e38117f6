package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/core/ports"
	"github.com/jjyaz/dohars-world/internal/observability/metrics"
)

const serviceLabel = "api"

// backpressureWait is how long a request may wait for an in-flight
// slot before getting 503.
const backpressureWait = 2 * time.Second

type Router struct {
	runner      ports.AgentRunner
	tools       ports.ToolExecutor
	httpMetrics *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int
}

func NewRouter(
	runner ports.AgentRunner,
	tools ports.ToolExecutor,
	httpMetrics *metrics.HTTPServerMetrics,
	rateLimitRPS float64,
	rateLimitBurst int,
	maxConcurrent int,
) *Router {
	return &Router{
		runner:         runner,
		tools:          tools,
		httpMetrics:    httpMetrics,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
		maxConcurrent:  maxConcurrent,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/agent/chat", rt.agentChat)
	mux.HandleFunc("/v1/tools", rt.listTools)
	mux.HandleFunc("/v1/tools/execute", rt.executeTool)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxConcurrent, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(serviceLabel, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) agentChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	// Memory is opt-out: an omitted useMemory field means true.
	req := domain.AgentRunRequest{UseMemory: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	setup, err := rt.runner.Begin(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	// The conversation id must reach the client before the stream
	// starts so reconnects can continue the same conversation.
	w.Header().Set("X-Conversation-Id", setup.ConversationID)

	stream, err := newSSEStream(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	observed := &observedStream{inner: stream, httpMetrics: rt.httpMetrics}
	start := time.Now()
	result, runErr := rt.runner.Run(r.Context(), setup, observed)
	if runErr != nil {
		slog.Error("agent_run",
			"request_id", requestIDFromContext(r.Context()),
			"conversation_id", setup.ConversationID,
			"agent", setup.Agent.Name,
			"error", runErr,
		)
		return
	}

	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordAgentRun(serviceLabel, result.FallbackReason, result.Iterations)
		rt.httpMetrics.RecordStreamChunks(serviceLabel, stream.chunksSent)
		if len(result.Answer) > 100 {
			rt.httpMetrics.RecordMemoryDerived(serviceLabel)
		}
	}
	slog.Info("agent_chat",
		"request_id", requestIDFromContext(r.Context()),
		"conversation_id", result.ConversationID,
		"agent", setup.Agent.Name,
		"iterations", result.Iterations,
		"tools", result.ToolsInvoked,
		"fallback_reason", result.FallbackReason,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
}

func (rt *Router) listTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": rt.tools.Catalog()})
}

func (rt *Router) executeTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ToolName  string         `json:"toolName"`
		ToolInput map[string]any `json:"toolInput"`
		AgentID   string         `json:"agentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.ToolName = strings.TrimSpace(req.ToolName)
	if req.ToolName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "toolName is required"})
		return
	}

	result := rt.tools.Execute(r.Context(), req.ToolName, req.ToolInput, req.AgentID)
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordToolCall(serviceLabel, req.ToolName, toolResultStatus(result))
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// observedStream forwards loop events to the client while counting
// council activity and tool outcomes.
type observedStream struct {
	inner       ports.EventStream
	httpMetrics *metrics.HTTPServerMetrics
}

func (s *observedStream) Event(name string, payload any) error {
	if s.httpMetrics != nil {
		switch name {
		case domain.EventCouncilStart, domain.EventAgentSummoned, domain.EventAgentThinking,
			domain.EventAgentMessage, domain.EventCouncilSynthesis:
			s.httpMetrics.RecordCouncilEvent(serviceLabel, name)
		case domain.EventToolResult:
			if event, ok := payload.(domain.ToolResultEvent); ok {
				s.httpMetrics.RecordToolCall(serviceLabel, event.Tool, toolResultStatus(event.Result))
			}
		}
	}
	return s.inner.Event(name, payload)
}

func (s *observedStream) Delta(chunk string) error {
	return s.inner.Delta(chunk)
}

func (s *observedStream) Done() error {
	return s.inner.Done()
}

func toolResultStatus(result string) string {
	switch {
	case strings.HasPrefix(result, "Error"), strings.HasPrefix(result, "Unknown tool"):
		return "error"
	default:
		return "ok"
	}
}
