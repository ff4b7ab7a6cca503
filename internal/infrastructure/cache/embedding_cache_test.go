package cache

import "testing"

func TestEmbeddingCacheNormalizesKeys(t *testing.T) {
	c, err := NewEmbeddingCache(4)
	if err != nil {
		t.Fatalf("NewEmbeddingCache() error = %v", err)
	}

	c.Add("  What Is The Refund Policy?  ", []float32{0.1, 0.2})

	vector, ok := c.Get("what is the refund policy?")
	if !ok {
		t.Fatalf("expected cache hit for normalized key")
	}
	if len(vector) != 2 || vector[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestEmbeddingCacheSkipsEmptyVectors(t *testing.T) {
	c, err := NewEmbeddingCache(4)
	if err != nil {
		t.Fatalf("NewEmbeddingCache() error = %v", err)
	}

	c.Add("query", nil)
	if _, ok := c.Get("query"); ok {
		t.Fatalf("empty vector should not be cached")
	}
}

func TestEmbeddingCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewEmbeddingCache(2)
	if err != nil {
		t.Fatalf("NewEmbeddingCache() error = %v", err)
	}

	c.Add("first", []float32{1})
	c.Add("second", []float32{2})
	c.Get("first")
	c.Add("third", []float32{3})

	if _, ok := c.Get("second"); ok {
		t.Fatalf("expected second to be evicted")
	}
	if _, ok := c.Get("first"); !ok {
		t.Fatalf("expected first to survive eviction")
	}
}
