// Package cache provides a bounded in-memory cache for query embeddings.
package cache

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 2048

// EmbeddingCache keys vectors by normalized query text so that retries and
// repeated questions skip the embedding round trip.
type EmbeddingCache struct {
	entries *lru.Cache[string, []float32]
}

func NewEmbeddingCache(size int) (*EmbeddingCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{entries: entries}, nil
}

func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	return c.entries.Get(cacheKey(text))
}

func (c *EmbeddingCache) Add(text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	c.entries.Add(cacheKey(text), vector)
}

func cacheKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
