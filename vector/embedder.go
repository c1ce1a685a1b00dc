package vector

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes an inner embedder. Keys are the first 100
// bytes of the text, matching the retrieval cache granularity, and the
// cache is bounded so long sessions cannot grow it without limit.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

const embedKeyLen = 100

// NewCachedEmbedder wraps inner with a bounded memo cache.
func NewCachedEmbedder(inner Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := text
	if len(key) > embedKeyLen {
		key = key[:embedKeyLen]
	}

	if cached, ok := c.cache.Get(key); ok {
		if embedding, ok := cached.([]float32); ok {
			return embedding, nil
		}
	}

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, embedding, 1)
	return embedding, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
