package lexical

import (
	"sync"
	"testing"
)

func TestSnapshotsPublishIncrementsVersion(t *testing.T) {
	snaps := NewSnapshots()
	if snaps.Load() != nil || snaps.Version() != 0 {
		t.Fatalf("expected empty holder")
	}
	first := snaps.Publish(&CorpusStatistics{DocumentCount: 1})
	second := snaps.Publish(&CorpusStatistics{DocumentCount: 2})
	if first.Version != 1 || second.Version != 2 {
		t.Fatalf("unexpected versions: %d %d", first.Version, second.Version)
	}
	if snaps.Load() != second {
		t.Fatalf("expected latest snapshot to be current")
	}
	if first.FittedAt.IsZero() {
		t.Fatalf("expected fitted_at to be stamped")
	}
}

func TestSnapshotsRestoreIgnoresOlderVersions(t *testing.T) {
	snaps := NewSnapshots()
	if !snaps.Restore(&CorpusStatistics{Version: 7, DocumentCount: 7}) {
		t.Fatalf("expected restore into empty holder")
	}
	if snaps.Restore(&CorpusStatistics{Version: 5}) {
		t.Fatalf("expected older snapshot to be ignored")
	}
	next := snaps.Publish(&CorpusStatistics{})
	if next.Version != 8 {
		t.Fatalf("expected publish to continue after restored version, got %d", next.Version)
	}
}

func TestSnapshotsStampDoesNotInstall(t *testing.T) {
	snaps := NewSnapshots()
	snaps.Publish(&CorpusStatistics{DocumentCount: 1})

	staged := snaps.Stamp(&CorpusStatistics{DocumentCount: 2})
	if staged.Version != 2 || staged.FittedAt.IsZero() {
		t.Fatalf("unexpected stamp: version=%d fitted_at=%v", staged.Version, staged.FittedAt)
	}
	if snaps.Version() != 1 {
		t.Fatalf("stamp must not change the current snapshot, got version %d", snaps.Version())
	}
	if again := snaps.Stamp(&CorpusStatistics{}); again.Version != 2 {
		t.Fatalf("an uninstalled stamp must not consume a version, got %d", again.Version)
	}

	if !snaps.Restore(staged) || snaps.Load() != staged {
		t.Fatalf("expected stamped snapshot to install")
	}
}

func TestModelEncodeReadsCurrentSnapshot(t *testing.T) {
	model, err := NewModel(NewTokenizer(nil), DefaultParams(), nil)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	cold, version := model.Encode("injunction")
	if version != 0 || len(cold) != 1 {
		t.Fatalf("unexpected cold encode: %+v version=%d", cold, version)
	}

	model.Fit([]string{"injunction granted", "motion denied", "motion granted"})
	warm, version := model.Encode("injunction")
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	if warm[0].Weight == cold[0].Weight {
		t.Fatalf("expected fitted weight to differ from cold start")
	}
}

func TestNewModelRejectsInvalidParams(t *testing.T) {
	if _, err := NewModel(nil, Params{K1: -1, B: 0.5}, nil); err == nil {
		t.Fatalf("expected invalid params error")
	}
}

func TestSnapshotsConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	model, err := NewModel(NewTokenizer(nil), DefaultParams(), nil)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if stats := model.Snapshots().Load(); stats != nil && stats.DocumentFrequency == nil {
					t.Errorf("observed half-built snapshot")
					return
				}
				model.Encode("motion to compel")
			}
		}()
	}
	for j := 0; j < 20; j++ {
		model.Fit([]string{"motion to compel discovery", "order on motion"})
	}
	wg.Wait()
}
