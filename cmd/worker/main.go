package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/bootstrap"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/observability/logging"
	"github.com/kirillkom/evidence-retrieval/internal/observability/metrics"
)

const (
	serviceName  = "evidence-worker"
	refitTimeout = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		BreakerObserver: workerMetrics.ObserveBreakerState,
	})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	runner := &refitRunner{app: app, metrics: workerMetrics}
	if cfg.RefitOnStart {
		if err := runner.run(ctx, "startup"); err != nil {
			slog.Error("refit_failed", "reason", "startup", "error", err)
		}
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSRefitSubject)
	if err := app.Events.SubscribeRefitRequested(ctx, runner.run); err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}

// refitRunner serializes refit runs; requests arriving during a run wait for it.
type refitRunner struct {
	app     *bootstrap.App
	metrics *metrics.WorkerMetrics
	mu      sync.Mutex
}

func (r *refitRunner) run(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, refitTimeout)
	defer cancel()

	start := time.Now()
	r.metrics.StartRefit()
	stats, err := r.app.Corpus.Refit(runCtx)
	if err == nil {
		r.metrics.ObserveSnapshot(stats.Version, stats.DocumentCount)
		var indexed int
		indexed, err = r.app.Reindexer.Reindex(runCtx)
		r.metrics.AddReindexed(indexed)
	}
	r.metrics.FinishRefit(time.Since(start), err)
	if err != nil {
		return err
	}
	r.app.Corpus.Announce(runCtx, stats)
	slog.Info("refit_completed",
		"reason", reason,
		"version", stats.Version,
		"documents", stats.DocumentCount,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return nil
}
