package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/evidence-retrieval/internal/adapters/http"
	mcpadapter "github.com/kirillkom/evidence-retrieval/internal/adapters/mcp"
	"github.com/kirillkom/evidence-retrieval/internal/bootstrap"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/observability/logging"
	"github.com/kirillkom/evidence-retrieval/internal/observability/metrics"
)

const serviceName = "evidence-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Search:          true,
		Observer:        serverMetrics,
		CacheRecorder:   serverMetrics,
		BreakerObserver: serverMetrics.ObserveBreakerState,
	})
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	serverMetrics.SetSnapshotVersion(app.Model.Snapshots().Version())

	go followSnapshots(ctx, app, serverMetrics)

	router := httpadapter.NewRouter(cfg, app.Searcher, app.Corpus, app.Events).
		WithMetrics(serverMetrics.Handler(), serverMetrics.Middleware)
	if cfg.MCPEnabled {
		router.WithMCP(mcpadapter.NewServer(cfg, app.Searcher).HTTPHandler("/mcp"))
	}

	server := &http.Server{
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_error", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "snapshot_version", app.Model.Snapshots().Version())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}

// followSnapshots reloads corpus statistics whenever a worker announces a new snapshot.
func followSnapshots(ctx context.Context, app *bootstrap.App, serverMetrics *metrics.HTTPServerMetrics) {
	err := app.Events.SubscribeSnapshotPublished(ctx, func(handlerCtx context.Context, version uint64) error {
		if version <= app.Model.Snapshots().Version() {
			return nil
		}
		stats, err := app.Corpus.Restore(handlerCtx)
		if err != nil {
			return err
		}
		serverMetrics.SetSnapshotVersion(stats.Version)
		if app.QueryCache != nil {
			if err := app.QueryCache.Invalidate(handlerCtx); err != nil {
				slog.Warn("cache_invalidate_failed", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("snapshot_subscription_error", "error", err)
	}
}
