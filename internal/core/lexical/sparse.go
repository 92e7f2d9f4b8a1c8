package lexical

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"
)

type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (v SparseVector) Empty() bool {
	return len(v.Indices) == 0
}

// TokenIndex maps a token to the first 32 bits of its SHA-256 digest.
func TokenIndex(token string) uint32 {
	sum := sha256.Sum256([]byte(token))
	return binary.BigEndian.Uint32(sum[:4])
}

// TokenIndexCache memoizes token indices for one encoding session (a query or a reindex batch).
type TokenIndexCache struct {
	mu      sync.RWMutex
	indices map[string]uint32
}

func NewTokenIndexCache() *TokenIndexCache {
	return &TokenIndexCache{indices: make(map[string]uint32)}
}

func (c *TokenIndexCache) Index(token string) uint32 {
	if c == nil {
		return TokenIndex(token)
	}
	c.mu.RLock()
	idx, ok := c.indices[token]
	c.mu.RUnlock()
	if ok {
		return idx
	}

	idx = TokenIndex(token)
	c.mu.Lock()
	c.indices[token] = idx
	c.mu.Unlock()
	return idx
}

func (c *TokenIndexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indices)
}

// ToSparse projects weights onto hashed dimensions sorted ascending. When two tokens
// collide the later one in vector order overwrites the earlier value.
func ToSparse(weights TermWeightVector, cache *TokenIndexCache) SparseVector {
	if len(weights) == 0 {
		return SparseVector{}
	}
	byIndex := make(map[uint32]float32, len(weights))
	for _, tw := range weights {
		byIndex[cache.Index(tw.Token)] = float32(tw.Weight)
	}

	indices := make([]uint32, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = byIndex[idx]
	}
	return SparseVector{Indices: indices, Values: values}
}
