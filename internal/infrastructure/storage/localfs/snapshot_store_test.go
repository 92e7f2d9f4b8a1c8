package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

func newStore(t *testing.T, keep int) (*SnapshotStore, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return NewSnapshotStore(storage, keep), dir
}

func TestLoadLatestSnapshotNotFound(t *testing.T) {
	store, _ := newStore(t, 0)
	if _, err := store.LoadLatestSnapshot(context.Background()); !domain.IsKind(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestSaveAndLoadLatestSnapshot(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()

	for version := uint64(1); version <= 2; version++ {
		stats := &lexical.CorpusStatistics{
			Version:               version,
			FittedAt:              time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			DocumentFrequency:     map[string]int{"contract": int(version)},
			DocumentCount:         3,
			AverageDocumentLength: 4.5,
		}
		if err := store.SaveSnapshot(ctx, stats); err != nil {
			t.Fatalf("SaveSnapshot(v%d) error = %v", version, err)
		}
	}

	got, err := store.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot() error = %v", err)
	}
	if got.Version != 2 || got.DocumentFrequency["contract"] != 2 || got.AverageDocumentLength != 4.5 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSaveSnapshotRejectsUnpublished(t *testing.T) {
	store, _ := newStore(t, 0)
	err := store.SaveSnapshot(context.Background(), &lexical.CorpusStatistics{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSaveSnapshotPrunesOldVersions(t *testing.T) {
	store, dir := newStore(t, 2)
	ctx := context.Background()
	for version := uint64(1); version <= 4; version++ {
		if err := store.SaveSnapshot(ctx, &lexical.CorpusStatistics{Version: version, DocumentFrequency: map[string]int{}}); err != nil {
			t.Fatalf("SaveSnapshot(v%d) error = %v", version, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	if len(names) != 3 {
		t.Fatalf("expected 2 versions plus latest, got %v", names)
	}
	for _, want := range []string{snapshotKey(3), snapshotKey(4), latestKey} {
		if !names[want] {
			t.Fatalf("expected %s to survive pruning, got %v", want, names)
		}
	}
}

func TestStorageRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "../escape.json"); err == nil {
		t.Fatalf("expected error for key outside the base path")
	}
}
