package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	backfillTotal    *prometheus.CounterVec
	backfillDuration *prometheus.HistogramVec
	backfillInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	backfillTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dw",
			Subsystem: "worker",
			Name:      "backfill_total",
			Help:      "Total memory embedding backfill attempts by status.",
		},
		[]string{"service", "status"},
	)
	backfillDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dw",
			Subsystem: "worker",
			Name:      "backfill_duration_seconds",
			Help:      "Duration of a single memory embedding backfill.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	backfillInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dw",
			Subsystem: "worker",
			Name:      "backfill_in_flight",
			Help:      "Number of memory embeddings currently being backfilled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(backfillTotal, backfillDuration, backfillInFlight)

	return &WorkerMetrics{
		registry:         registry,
		backfillTotal:    backfillTotal,
		backfillDuration: backfillDuration,
		backfillInFlight: backfillInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBackfill() {
	m.backfillInFlight.Inc()
}

func (m *WorkerMetrics) FinishBackfill(service, status string, started time.Time) {
	m.backfillInFlight.Dec()
	m.backfillTotal.WithLabelValues(service, status).Inc()
	m.backfillDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}
