package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const DefaultQueryCacheSize = 1000

type modelNamer interface {
	ModelName() string
}

// CachedEmbedder memoizes query embeddings. Batch passage embeddings pass through.
type CachedEmbedder struct {
	inner ports.Embedder
	model string
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner ports.Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	model := ""
	if named, ok := inner.(modelNamer); ok {
		model = named.ModelName()
	}
	return &CachedEmbedder{inner: inner, model: model, cache: cache}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
