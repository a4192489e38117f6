package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	agentRunsTotal      *prometheus.CounterVec
	agentIterations     *prometheus.HistogramVec
	agentToolCallsTotal *prometheus.CounterVec
	councilEventsTotal  *prometheus.CounterVec
	streamChunksTotal   *prometheus.CounterVec
	memoriesDerived     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dw",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dw",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	agentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total completed agent runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	agentIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dw",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Distribution of reasoning loop iterations per run.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	agentToolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total tool calls dispatched by the reasoning loop.",
		},
		[]string{"service", "tool", "status"},
	)
	councilEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "council",
			Name:      "events_total",
			Help:      "Total council stream events by type.",
		},
		[]string{"service", "event"},
	)
	streamChunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "stream",
			Name:      "chunks_total",
			Help:      "Total answer chunks streamed to clients.",
		},
		[]string{"service"},
	)
	memoriesDerived := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "memory",
			Name:      "derived_total",
			Help:      "Total memories derived from final answers.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		agentRunsTotal,
		agentIterations,
		agentToolCallsTotal,
		councilEventsTotal,
		streamChunksTotal,
		memoriesDerived,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		agentRunsTotal:      agentRunsTotal,
		agentIterations:     agentIterations,
		agentToolCallsTotal: agentToolCallsTotal,
		councilEventsTotal:  councilEventsTotal,
		streamChunksTotal:   streamChunksTotal,
		memoriesDerived:     memoriesDerived,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/agent/"):
		return "/v1/agent/chat"
	default:
		return path
	}
}

// RecordAgentRun tracks a finished run. Empty outcome means the loop
// produced an answer without falling back.
func (m *HTTPServerMetrics) RecordAgentRun(service, outcome string, iterations int) {
	if outcome == "" {
		outcome = "answered"
	}
	m.agentRunsTotal.WithLabelValues(service, outcome).Inc()
	if iterations > 0 {
		m.agentIterations.WithLabelValues(service).Observe(float64(iterations))
	}
}

func (m *HTTPServerMetrics) RecordToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.agentToolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordCouncilEvent(service, event string) {
	m.councilEventsTotal.WithLabelValues(service, event).Inc()
}

func (m *HTTPServerMetrics) RecordStreamChunks(service string, count int) {
	if count <= 0 {
		return
	}
	m.streamChunksTotal.WithLabelValues(service).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordMemoryDerived(service string) {
	m.memoriesDerived.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
