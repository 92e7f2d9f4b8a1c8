package lexical

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshots publishes corpus statistics to concurrent readers. Readers always observe a
// complete snapshot; a nil Load result means nothing was fitted yet.
type Snapshots struct {
	current atomic.Pointer[CorpusStatistics]

	mu      sync.Mutex
	version uint64
	now     func() time.Time
}

func NewSnapshots() *Snapshots {
	return &Snapshots{now: time.Now}
}

func (s *Snapshots) Load() *CorpusStatistics {
	return s.current.Load()
}

func (s *Snapshots) Version() uint64 {
	if stats := s.current.Load(); stats != nil {
		return stats.Version
	}
	return 0
}

// Publish stamps stats with the next version and makes it current. stats must not be
// modified by the caller afterwards.
func (s *Snapshots) Publish(stats *CorpusStatistics) *CorpusStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	stats.Version = s.version
	if stats.FittedAt.IsZero() {
		stats.FittedAt = s.now().UTC()
	}
	s.current.Store(stats)
	return stats
}

// Stamp assigns stats the version the next Publish would give it without making it current.
// Installing it with Restore after it has been persisted keeps memory behind storage.
func (s *Snapshots) Stamp(stats *CorpusStatistics) *CorpusStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats.Version = s.version + 1
	if stats.FittedAt.IsZero() {
		stats.FittedAt = s.now().UTC()
	}
	return stats
}

// Restore installs a previously persisted snapshot keeping its version. Older versions
// than the current one are ignored.
func (s *Snapshots) Restore(stats *CorpusStatistics) bool {
	if stats == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if stats.Version <= s.version && s.current.Load() != nil {
		return false
	}
	if stats.Version > s.version {
		s.version = stats.Version
	}
	s.current.Store(stats)
	return true
}

// Model binds a tokenizer and BM25 parameters to the published snapshot.
type Model struct {
	tokenizer *Tokenizer
	params    Params
	snapshots *Snapshots
}

func NewModel(tokenizer *Tokenizer, params Params, snapshots *Snapshots) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	if snapshots == nil {
		snapshots = NewSnapshots()
	}
	return &Model{tokenizer: tokenizer, params: params, snapshots: snapshots}, nil
}

func (m *Model) Tokenizer() *Tokenizer { return m.tokenizer }

func (m *Model) Snapshots() *Snapshots { return m.snapshots }

func (m *Model) Params() Params { return m.params }

// Fit builds statistics over corpus and publishes them.
func (m *Model) Fit(corpus []string) *CorpusStatistics {
	return m.snapshots.Publish(Fit(m.tokenizer, corpus))
}

// Encode weights text against the current snapshot and reports the version used.
func (m *Model) Encode(text string) (TermWeightVector, uint64) {
	return m.EncodeWith(text, m.params)
}

func (m *Model) EncodeWith(text string, params Params) (TermWeightVector, uint64) {
	stats := m.snapshots.Load()
	var version uint64
	if stats != nil {
		version = stats.Version
	}
	return Encode(m.tokenizer, text, stats, params), version
}
