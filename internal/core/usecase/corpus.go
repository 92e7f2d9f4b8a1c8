package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const defaultCorpusPageSize = 500

type CorpusUseCase struct {
	model    *lexical.Model
	source   ports.CorpusSource
	store    ports.SnapshotStore
	events   ports.CorpusEvents
	pageSize int
}

// NewCorpusUseCase builds the corpus statistics lifecycle. store and events are optional.
func NewCorpusUseCase(
	model *lexical.Model,
	source ports.CorpusSource,
	store ports.SnapshotStore,
	events ports.CorpusEvents,
	pageSize int,
) *CorpusUseCase {
	if pageSize <= 0 {
		pageSize = defaultCorpusPageSize
	}
	return &CorpusUseCase{
		model:    model,
		source:   source,
		store:    store,
		events:   events,
		pageSize: pageSize,
	}
}

func (uc *CorpusUseCase) Current() *lexical.CorpusStatistics {
	return uc.model.Snapshots().Load()
}

// Refit streams the corpus, persists fresh statistics and then installs them locally.
// A failed save leaves the current snapshot and version counter untouched.
func (uc *CorpusUseCase) Refit(ctx context.Context) (*lexical.CorpusStatistics, error) {
	if uc.source == nil {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "refit corpus", errors.New("corpus source is not configured"))
	}
	if uc.Current() == nil && uc.store != nil {
		if _, err := uc.Restore(ctx); err != nil && !domain.IsKind(err, domain.ErrSnapshotNotFound) {
			return nil, err
		}
	}

	start := time.Now()
	fitter := lexical.NewFitter(uc.model.Tokenizer())
	if err := forEachPassagePage(ctx, uc.source, uc.pageSize, func(page []domain.Passage) error {
		for _, passage := range page {
			fitter.Add(passage.Text)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("fit corpus: %w", err)
	}

	snapshots := uc.model.Snapshots()
	stats := snapshots.Stamp(fitter.Statistics())
	if uc.store != nil {
		if err := uc.store.SaveSnapshot(ctx, stats); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}
	snapshots.Restore(stats)
	slog.Info("corpus_fitted",
		"version", stats.Version,
		"documents", stats.DocumentCount,
		"vocabulary", len(stats.DocumentFrequency),
		"avg_doc_length", stats.AverageDocumentLength,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return stats, nil
}

// Announce tells other processes that stats is persisted and ready. Call it once the index
// vectors were rebuilt against stats, so readers never mix statistics and vectors.
func (uc *CorpusUseCase) Announce(ctx context.Context, stats *lexical.CorpusStatistics) {
	if uc.events == nil || stats == nil {
		return
	}
	if err := uc.events.PublishSnapshotPublished(ctx, stats.Version); err != nil {
		slog.Warn("snapshot_publish_notify_failed", "version", stats.Version, "error", err)
	}
}

// Restore installs the latest persisted snapshot when it is newer than the current one.
func (uc *CorpusUseCase) Restore(ctx context.Context) (*lexical.CorpusStatistics, error) {
	if uc.store == nil {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "restore snapshot", errors.New("snapshot store is not configured"))
	}
	stats, err := uc.store.LoadLatestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if uc.model.Snapshots().Restore(stats) {
		slog.Info("corpus_snapshot_restored", "version", stats.Version, "documents", stats.DocumentCount)
	}
	return uc.Current(), nil
}

func forEachPassagePage(
	ctx context.Context,
	source ports.CorpusSource,
	pageSize int,
	fn func([]domain.Passage) error,
) error {
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := source.ListPassages(ctx, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("list passages after %q: %w", afterID, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}
