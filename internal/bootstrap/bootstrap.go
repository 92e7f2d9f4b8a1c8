package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
	"github.com/kirillkom/evidence-retrieval/internal/core/usecase"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/audit/kafka"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/cache/redis"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/evidence-retrieval/internal/infrastructure/vector/qdrant"
)

// Options selects the search side of the graph. The worker leaves Search false.
type Options struct {
	Search        bool
	Observer      ports.SearchObserver
	CacheRecorder redis.LookupRecorder
	// BreakerObserver receives circuit breaker transitions of every outbound backend.
	BreakerObserver func(operation, state string)
}

type App struct {
	Config config.Config

	Model    *lexical.Model
	Events   *nats.Queue
	Passages *postgres.PassageRepository

	Corpus    *usecase.CorpusUseCase
	Reindexer *usecase.ReindexUseCase

	// Searcher and QueryCache are set only with Options.Search; QueryCache is nil without Redis.
	// Searcher is audit -> cache -> search, so cache hits are audited too.
	Searcher   ports.EvidenceSearcher
	QueryCache *redis.QueryCache

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience()).WithStateObserver(opts.BreakerObserver)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, db.Close)
	app.Passages = postgres.NewPassageRepository(db)
	if err := app.Passages.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("init snapshot storage: %w", err)
	}
	snapshotStore := localfs.NewSnapshotStore(storage, cfg.SnapshotKeep)

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		RefitSubject:       cfg.NATSRefitSubject,
		SnapshotSubject:    cfg.NATSSnapshotSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Events = queue
	app.closers = append(app.closers, func() error { queue.Close(); return nil })

	model, err := lexical.NewModel(lexical.NewTokenizer(cfg.Stopwords()), cfg.BM25(), lexical.NewSnapshots())
	if err != nil {
		return nil, fmt.Errorf("init lexical model: %w", err)
	}
	app.Model = model

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:  cfg.OllamaTimeout,
		Executor: executor,
	})
	var embedder ports.Embedder = ollama.NewEmbedder(ollamaClient)
	if cfg.EmbedCacheSize > 0 {
		embedder = ollama.NewCachedEmbedder(embedder, cfg.EmbedCacheSize)
	}

	vectors := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		Timeout:  cfg.QdrantTimeout,
		Executor: executor,
	})

	app.Corpus = usecase.NewCorpusUseCase(model, app.Passages, snapshotStore, queue, cfg.CorpusPageSize)
	app.Reindexer = usecase.NewReindexUseCase(model, app.Passages, embedder, vectors, cfg.ReindexBatchSize)

	if _, err := app.Corpus.Restore(ctx); err != nil {
		if !domain.IsKind(err, domain.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("restore corpus snapshot: %w", err)
		}
		slog.Info("corpus_snapshot_missing", "path", cfg.SnapshotPath)
	}

	if !opts.Search {
		return app, nil
	}

	var audit ports.SearchAuditLog
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		if err != nil {
			return nil, fmt.Errorf("init audit publisher: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		audit = publisher
	}

	search, err := usecase.NewSearchUseCase(
		model,
		vectors,
		embedder,
		vectors,
		app.Passages,
		opts.Observer,
		cfg.SearchOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("init search: %w", err)
	}
	app.Searcher = search

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("init query cache: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.QueryCache = redis.NewQueryCache(search, client, model.Snapshots().Version, cfg.RedisCacheTTL, opts.CacheRecorder)
		app.Searcher = app.QueryCache
	}
	if audit != nil {
		app.Searcher = usecase.NewAuditedSearcher(app.Searcher, audit)
	}
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		slog.Warn("shutdown_close_failed", "error", err)
	}
}
