package ports

import (
	"context"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

// EvidenceSearcher is the inbound contract for hybrid evidence retrieval.
type EvidenceSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

// CorpusManager is the inbound contract for corpus statistics lifecycle.
type CorpusManager interface {
	Refit(ctx context.Context) (*lexical.CorpusStatistics, error)
	Restore(ctx context.Context) (*lexical.CorpusStatistics, error)
	Current() *lexical.CorpusStatistics
}

// CorpusReindexer is the inbound contract for rebuilding index vectors.
type CorpusReindexer interface {
	Reindex(ctx context.Context) (int, error)
}
