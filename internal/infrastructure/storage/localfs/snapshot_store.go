package localfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/lexical"
)

const (
	snapshotPrefix = "corpus-stats-"
	latestKey      = "corpus-stats-latest.json"
)

// SnapshotStore keeps versioned corpus statistics as JSON files plus a copy of the newest one.
type SnapshotStore struct {
	storage *Storage
	keep    int
}

// NewSnapshotStore retains the newest keep versioned files; keep <= 0 retains all of them.
func NewSnapshotStore(storage *Storage, keep int) *SnapshotStore {
	return &SnapshotStore{storage: storage, keep: keep}
}

func snapshotKey(version uint64) string {
	return fmt.Sprintf("%s%020d.json", snapshotPrefix, version)
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, stats *lexical.CorpusStatistics) error {
	if stats == nil || stats.Version == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "save snapshot", errors.New("snapshot must be published before saving"))
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.storage.Save(ctx, snapshotKey(stats.Version), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save snapshot v%d: %w", stats.Version, err)
	}
	if err := s.storage.Save(ctx, latestKey, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save latest snapshot: %w", err)
	}
	s.prune(ctx)
	return nil
}

func (s *SnapshotStore) LoadLatestSnapshot(ctx context.Context) (*lexical.CorpusStatistics, error) {
	rc, err := s.storage.Open(ctx, latestKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrSnapshotNotFound, "load latest snapshot", err)
		}
		return nil, err
	}
	defer rc.Close()

	var stats lexical.CorpusStatistics
	if err := json.NewDecoder(rc).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if stats.DocumentFrequency == nil {
		stats.DocumentFrequency = map[string]int{}
	}
	return &stats, nil
}

func (s *SnapshotStore) prune(ctx context.Context) {
	if s.keep <= 0 {
		return
	}
	keys, err := s.storage.List(ctx, snapshotPrefix)
	if err != nil {
		slog.Warn("snapshot_prune_failed", "error", err)
		return
	}
	versioned := keys[:0]
	for _, key := range keys {
		if key != latestKey {
			versioned = append(versioned, key)
		}
	}
	for len(versioned) > s.keep {
		if err := s.storage.Remove(ctx, versioned[0]); err != nil {
			slog.Warn("snapshot_prune_failed", "key", versioned[0], "error", err)
		}
		versioned = versioned[1:]
	}
}
