package ports

import (
	"context"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

// Embedder builds dense vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex is the semantic channel backend.
type DenseIndex interface {
	SearchDense(ctx context.Context, vector []float32, filter domain.SearchFilter, topK int) ([]domain.ChannelResult, error)
}

// LexicalIndex is the keyword channel backend queried with BM25 sparse vectors.
type LexicalIndex interface {
	SearchSparse(ctx context.Context, vector lexical.SparseVector, filter domain.SearchFilter, topK int) ([]domain.ChannelResult, error)
}

// PassageIndexer writes dense and sparse representations of passages.
type PassageIndexer interface {
	IndexPassages(ctx context.Context, passages []domain.Passage, dense [][]float32, sparse []lexical.SparseVector) error
}

// PayloadStore resolves payloads for ids a channel returned without one.
type PayloadStore interface {
	GetPayloads(ctx context.Context, ids []string) (map[string]map[string]any, error)
}

// CorpusSource streams the evidence corpus for fitting and reindexing.
type CorpusSource interface {
	ListPassages(ctx context.Context, afterID string, limit int) ([]domain.Passage, error)
}

// SnapshotStore persists corpus statistics snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, stats *lexical.CorpusStatistics) error
	LoadLatestSnapshot(ctx context.Context) (*lexical.CorpusStatistics, error)
}

// CorpusEvents carries refit requests and snapshot publication notices between processes.
type CorpusEvents interface {
	PublishRefitRequested(ctx context.Context, reason string) error
	SubscribeRefitRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishSnapshotPublished(ctx context.Context, version uint64) error
	SubscribeSnapshotPublished(ctx context.Context, handler func(context.Context, uint64) error) error
}

// SearchAuditLog records completed searches.
type SearchAuditLog interface {
	RecordSearch(ctx context.Context, event domain.SearchAuditEvent) error
}

// SearchObserver receives per-search and per-channel outcomes for metrics.
type SearchObserver interface {
	ObserveChannel(channel domain.Channel, state domain.ChannelState, elapsed time.Duration, results int)
	ObserveSearch(outcome string, elapsed time.Duration, returned int)
}
