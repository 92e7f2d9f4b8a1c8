package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

func testPassages() []domain.Passage {
	return []domain.Passage{
		{ID: "p1", CaseID: "case-1", Kind: domain.KindDocument, Text: "lease agreement signed"},
		{ID: "p2", CaseID: "case-1", Kind: domain.KindDocument, Text: "breach of lease"},
		{ID: "p3", CaseID: "case-1", Kind: domain.KindTranscript, Text: "witness denies breach"},
		{ID: "p4", CaseID: "case-2", Kind: domain.KindCommunication, Text: "email about renewal"},
		{ID: "p5", CaseID: "case-2", Kind: domain.KindCommunication, Text: "renewal declined"},
	}
}

func TestCorpusRefitPagesPublishesAndPersists(t *testing.T) {
	source := &corpusSourceFake{passages: testPassages()}
	store := &snapshotStoreFake{}
	events := &corpusEventsFake{}
	model := newTestModel(t)
	uc := NewCorpusUseCase(model, source, store, events, 2)

	stats, err := uc.Refit(context.Background())
	if err != nil {
		t.Fatalf("Refit() error = %v", err)
	}
	if stats.DocumentCount != 5 || stats.Version != 1 {
		t.Fatalf("unexpected stats: count=%d version=%d", stats.DocumentCount, stats.Version)
	}
	if stats.DocumentFrequency["breach"] != 2 || stats.DocumentFrequency["renewal"] != 2 {
		t.Fatalf("unexpected document frequencies: %v", stats.DocumentFrequency)
	}
	wantAfter := []string{"", "p2", "p4"}
	if len(source.afterIDs) != len(wantAfter) {
		t.Fatalf("expected pages after %v, got %v", wantAfter, source.afterIDs)
	}
	for i := range wantAfter {
		if source.afterIDs[i] != wantAfter[i] {
			t.Fatalf("expected pages after %v, got %v", wantAfter, source.afterIDs)
		}
	}
	if model.Snapshots().Load() != stats {
		t.Fatalf("expected published snapshot to be current")
	}
	if len(store.saved) != 1 || store.saved[0] != stats {
		t.Fatalf("expected snapshot persisted, saved=%d", len(store.saved))
	}
	if len(events.published) != 0 {
		t.Fatalf("refit must not announce before reindex, published=%v", events.published)
	}

	uc.Announce(context.Background(), stats)
	if len(events.published) != 1 || events.published[0] != 1 {
		t.Fatalf("expected version 1 announced, got %v", events.published)
	}
}

func TestCorpusRefitSaveFailureKeepsCurrentSnapshot(t *testing.T) {
	store := &snapshotStoreFake{err: errors.New("disk full")}
	events := &corpusEventsFake{}
	model := newTestModel(t)
	uc := NewCorpusUseCase(model, &corpusSourceFake{passages: testPassages()}, store, events, 10)

	if _, err := uc.Refit(context.Background()); err == nil {
		t.Fatalf("expected save error")
	}
	if model.Snapshots().Load() != nil || model.Snapshots().Version() != 0 {
		t.Fatalf("unsaved snapshot must not become current")
	}

	store.err = nil
	stats, err := uc.Refit(context.Background())
	if err != nil {
		t.Fatalf("Refit() error = %v", err)
	}
	if stats.Version != 1 || model.Snapshots().Load() != stats {
		t.Fatalf("expected version 1 installed after failed attempt, got %d", stats.Version)
	}
}

func TestCorpusRefitContinuesPersistedVersion(t *testing.T) {
	store := &snapshotStoreFake{latest: &lexical.CorpusStatistics{Version: 4, DocumentCount: 1, AverageDocumentLength: 1}}
	uc := NewCorpusUseCase(newTestModel(t), &corpusSourceFake{passages: testPassages()}, store, nil, 10)

	stats, err := uc.Refit(context.Background())
	if err != nil {
		t.Fatalf("Refit() error = %v", err)
	}
	if stats.Version != 5 {
		t.Fatalf("expected version 5 after restored 4, got %d", stats.Version)
	}
}

func TestCorpusRefitSourceError(t *testing.T) {
	model := newTestModel(t)
	uc := NewCorpusUseCase(model, &corpusSourceFake{err: errors.New("db down")}, nil, nil, 10)
	if _, err := uc.Refit(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if model.Snapshots().Load() != nil {
		t.Fatalf("failed refit must not publish")
	}
}

func TestCorpusRefitEmptyCorpus(t *testing.T) {
	uc := NewCorpusUseCase(newTestModel(t), &corpusSourceFake{}, nil, nil, 10)
	stats, err := uc.Refit(context.Background())
	if err != nil {
		t.Fatalf("Refit() error = %v", err)
	}
	if stats.DocumentCount != 0 || stats.AverageDocumentLength != 1 {
		t.Fatalf("unexpected degenerate stats: %+v", stats)
	}
}

func TestCorpusRestore(t *testing.T) {
	uc := NewCorpusUseCase(newTestModel(t), nil, &snapshotStoreFake{}, nil, 10)
	if _, err := uc.Restore(context.Background()); !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected snapshot not found, got %v", err)
	}

	stored := &lexical.CorpusStatistics{Version: 3, DocumentCount: 2, AverageDocumentLength: 4}
	uc = NewCorpusUseCase(newTestModel(t), nil, &snapshotStoreFake{latest: stored}, nil, 10)
	current, err := uc.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if current != stored || uc.Current() != stored {
		t.Fatalf("expected restored snapshot to be current")
	}
}

func TestCorpusRefitRequiresSource(t *testing.T) {
	uc := NewCorpusUseCase(newTestModel(t), nil, nil, nil, 10)
	if _, err := uc.Refit(context.Background()); !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
