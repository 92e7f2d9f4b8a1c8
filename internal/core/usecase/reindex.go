package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const defaultReindexBatchSize = 64

type ReindexUseCase struct {
	model     *lexical.Model
	source    ports.CorpusSource
	embedder  ports.Embedder
	indexer   ports.PassageIndexer
	batchSize int
}

func NewReindexUseCase(
	model *lexical.Model,
	source ports.CorpusSource,
	embedder ports.Embedder,
	indexer ports.PassageIndexer,
	batchSize int,
) *ReindexUseCase {
	if batchSize <= 0 {
		batchSize = defaultReindexBatchSize
	}
	return &ReindexUseCase{
		model:     model,
		source:    source,
		embedder:  embedder,
		indexer:   indexer,
		batchSize: batchSize,
	}
}

// Reindex rewrites dense and sparse vectors of every passage. All sparse vectors are encoded
// against the snapshot current when the run starts.
func (uc *ReindexUseCase) Reindex(ctx context.Context) (int, error) {
	if uc.source == nil || uc.embedder == nil || uc.indexer == nil {
		return 0, domain.WrapError(domain.ErrInvalidConfiguration, "reindex", errors.New("source, embedder and indexer are required"))
	}

	stats := uc.model.Snapshots().Load()
	params := uc.model.Params()
	tokenizer := uc.model.Tokenizer()

	indexed := 0
	err := forEachPassagePage(ctx, uc.source, uc.batchSize, func(page []domain.Passage) error {
		texts := make([]string, len(page))
		for i, passage := range page {
			texts[i] = passage.Text
		}
		dense, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed passages: %w", err)
		}
		if len(dense) != len(page) {
			return fmt.Errorf("embed passages: expected %d vectors, got %d", len(page), len(dense))
		}

		cache := lexical.NewTokenIndexCache()
		sparse := make([]lexical.SparseVector, len(page))
		for i, text := range texts {
			sparse[i] = lexical.ToSparse(lexical.Encode(tokenizer, text, stats, params), cache)
		}
		if err := uc.indexer.IndexPassages(ctx, page, dense, sparse); err != nil {
			return fmt.Errorf("index passages: %w", err)
		}
		indexed += len(page)
		return nil
	})
	if err != nil {
		return indexed, err
	}

	var version uint64
	if stats != nil {
		version = stats.Version
	}
	slog.Info("corpus_reindexed", "passages", indexed, "snapshot_version", version)
	return indexed, nil
}
