// Package cached wraps an embedder with a ristretto cache, so re-ingestion
// runs and repeated queries do not hit the embedding service twice for the
// same text.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/vakeel-labs/vakeel/embedder"
)

// Embedder memoizes Embed calls by exact input text.
type Embedder struct {
	inner embedder.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache holding up to maxBytes of vectors
// (cost-accounted at 4 bytes per dimension). maxBytes defaults to 64 MiB
// when non-positive.
func New(inner embedder.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if hit, ok := e.cache.Get(text); ok {
		if vec, ok := hit.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(4*len(vec)))
	return vec, nil
}

func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Useful in tests.
func (e *Embedder) Wait() {
	e.cache.Wait()
}
