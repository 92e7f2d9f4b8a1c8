package redis

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const keyPrefix = "evidence:search:"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type LookupRecorder interface {
	ObserveCacheLookup(hit bool)
}

// QueryCache serves repeated searches from Redis. Entries are keyed by the normalized request
// and the corpus snapshot version, so a new snapshot never serves stale scores.
type QueryCache struct {
	inner    ports.EvidenceSearcher
	store    Store
	version  func() uint64
	ttl      time.Duration
	recorder LookupRecorder
	group    singleflight.Group
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

func NewQueryCache(inner ports.EvidenceSearcher, store Store, version func() uint64, ttl time.Duration, recorder LookupRecorder) *QueryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if version == nil {
		version = func() uint64 { return 0 }
	}
	return &QueryCache{
		inner:    inner,
		store:    store,
		version:  version,
		ttl:      ttl,
		recorder: recorder,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	key, err := c.buildKey(req)
	if err != nil {
		c.logger.Error("cache key failed", "request_id", req.RequestID, "error", err)
		return c.inner.Search(ctx, req)
	}
	if resp, ok := c.get(ctx, key); ok {
		return resp, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if resp, ok := c.get(ctx, key); ok {
			return resp, nil
		}
		resp, err := c.inner.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		if !resp.Diagnostics.Degraded {
			c.set(ctx, key, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*domain.SearchResponse), nil
}

// Invalidate drops every cached search response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache_invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) (*domain.SearchResponse, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.observe(false)
		return nil, false
	}
	var resp domain.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.observe(false)
		return nil, false
	}
	c.observe(true)
	return &resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp *domain.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) observe(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.recorder != nil {
		c.recorder.ObserveCacheLookup(hit)
	}
}

func (c *QueryCache) buildKey(req domain.SearchRequest) (string, error) {
	normalized := req
	normalized.Query = strings.Join(strings.Fields(req.Query), " ")
	normalized.Channels = slices.Clone(req.Channels)
	slices.Sort(normalized.Channels)
	normalized.Channels = slices.Compact(normalized.Channels)
	normalized.Filter.Kinds = slices.Clone(req.Filter.Kinds)
	slices.Sort(normalized.Filter.Kinds)
	normalized.Filter.DocumentIDs = slices.Clone(req.Filter.DocumentIDs)
	slices.Sort(normalized.Filter.DocumentIDs)

	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("%sv%d:%x", keyPrefix, c.version(), hash[:16]), nil
}
