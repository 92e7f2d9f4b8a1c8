package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

type lexicalIndexFake struct {
	results []domain.ChannelResult
	err     error
	calls   int
	vector  lexical.SparseVector
	topK    int
	filter  domain.SearchFilter
}

func (f *lexicalIndexFake) SearchSparse(ctx context.Context, vector lexical.SparseVector, filter domain.SearchFilter, topK int) ([]domain.ChannelResult, error) {
	f.calls++
	f.vector = vector
	f.filter = filter
	f.topK = topK
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type embedderFake struct {
	mu      sync.Mutex
	err     error
	block   bool
	queries []string
	batches [][]string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type denseIndexFake struct {
	results []domain.ChannelResult
	err     error
	calls   int
}

func (f *denseIndexFake) SearchDense(ctx context.Context, _ []float32, _ domain.SearchFilter, _ int) ([]domain.ChannelResult, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type payloadStoreFake struct {
	payloads map[string]map[string]any
	err      error
	ids      []string
}

func (f *payloadStoreFake) GetPayloads(_ context.Context, ids []string) (map[string]map[string]any, error) {
	f.ids = append(f.ids, ids...)
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads, nil
}

type auditLogFake struct {
	events []domain.SearchAuditEvent
}

func (f *auditLogFake) RecordSearch(_ context.Context, event domain.SearchAuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

type observerFake struct {
	channels map[domain.Channel]domain.ChannelState
	outcomes []string
}

func (f *observerFake) ObserveChannel(ch domain.Channel, state domain.ChannelState, _ time.Duration, _ int) {
	if f.channels == nil {
		f.channels = make(map[domain.Channel]domain.ChannelState)
	}
	f.channels[ch] = state
}

func (f *observerFake) ObserveSearch(outcome string, _ time.Duration, _ int) {
	f.outcomes = append(f.outcomes, outcome)
}

type corpusSourceFake struct {
	passages []domain.Passage
	err      error
	afterIDs []string
}

func (f *corpusSourceFake) ListPassages(_ context.Context, afterID string, limit int) ([]domain.Passage, error) {
	f.afterIDs = append(f.afterIDs, afterID)
	if f.err != nil {
		return nil, f.err
	}
	start := 0
	if afterID != "" {
		for i, p := range f.passages {
			if p.ID == afterID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.passages))
	return f.passages[start:end], nil
}

type snapshotStoreFake struct {
	saved  []*lexical.CorpusStatistics
	latest *lexical.CorpusStatistics
	err    error
}

func (f *snapshotStoreFake) SaveSnapshot(_ context.Context, stats *lexical.CorpusStatistics) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, stats)
	f.latest = stats
	return nil
}

func (f *snapshotStoreFake) LoadLatestSnapshot(context.Context) (*lexical.CorpusStatistics, error) {
	if f.latest == nil {
		return nil, domain.WrapError(domain.ErrSnapshotNotFound, "load snapshot", errors.New("empty store"))
	}
	return f.latest, nil
}

type corpusEventsFake struct {
	published []uint64
}

func (f *corpusEventsFake) PublishRefitRequested(context.Context, string) error { return nil }
func (f *corpusEventsFake) SubscribeRefitRequested(context.Context, func(context.Context, string) error) error {
	return nil
}
func (f *corpusEventsFake) PublishSnapshotPublished(_ context.Context, version uint64) error {
	f.published = append(f.published, version)
	return nil
}
func (f *corpusEventsFake) SubscribeSnapshotPublished(context.Context, func(context.Context, uint64) error) error {
	return nil
}

type passageIndexerFake struct {
	passages []domain.Passage
	dense    [][]float32
	sparse   []lexical.SparseVector
	err      error
}

func (f *passageIndexerFake) IndexPassages(_ context.Context, passages []domain.Passage, dense [][]float32, sparse []lexical.SparseVector) error {
	if f.err != nil {
		return f.err
	}
	f.passages = append(f.passages, passages...)
	f.dense = append(f.dense, dense...)
	f.sparse = append(f.sparse, sparse...)
	return nil
}
