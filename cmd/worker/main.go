package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jjyaz/dohars-world/internal/bootstrap"
	"github.com/jjyaz/dohars-world/internal/config"
	"github.com/jjyaz/dohars-world/internal/observability/logging"
	"github.com/jjyaz/dohars-world/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeMemoryStored(ctx, func(handlerCtx context.Context, memoryID string) error {
		start := time.Now()
		workerMetrics.StartBackfill()

		backfillCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		if err := backfillEmbedding(backfillCtx, app, memoryID); err != nil {
			workerMetrics.FinishBackfill("worker", "error", start)
			logger.Error("memory backfill", "memory_id", memoryID, "error", err)
			return err
		}
		workerMetrics.FinishBackfill("worker", "ok", start)
		logger.Info("memory backfill", "memory_id", memoryID, "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
		return nil
	})
	if err != nil {
		logger.Error("worker subscribe", "error", err)
		os.Exit(1)
	}
}

// backfillEmbedding computes and stores the vector for a memory that
// was persisted without one. Already-embedded memories are skipped.
func backfillEmbedding(ctx context.Context, app *bootstrap.App, memoryID string) error {
	record, err := app.Memories.Get(ctx, memoryID)
	if err != nil {
		return err
	}
	if len(record.Embedding) > 0 {
		return nil
	}

	vector, err := app.Embedder.EmbedText(ctx, record.Content)
	if err != nil {
		return err
	}
	return app.Memories.SetEmbedding(ctx, memoryID, vector)
}
