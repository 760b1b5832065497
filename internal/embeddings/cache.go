// Package embeddings provides the content-addressed embedding cache shared by
// the candidate generator. The cache is constructed explicitly at pipeline
// start, optionally backed by a persistent Store, and torn down with Close.
package embeddings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

// ComputeFunc produces the embedding of text on a cache miss.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// Store persists vectors across processes.
type Store interface {
	// Load returns (nil, false, nil) on a miss.
	Load(ctx context.Context, key string) ([]float32, bool, error)
	Save(ctx context.Context, key string, vec []float32) error
}

// Stats counts cache lookups.
type Stats struct {
	Hits       int64 `json:"hits"`
	StoreHits  int64 `json:"store_hits"`
	Misses     int64 `json:"misses"`
	StoreFails int64 `json:"store_fails"`
}

// Cache is an in-memory map keyed by content hash in front of an optional
// Store. Concurrent misses for the same key share one computation.
type Cache struct {
	model   string
	store   Store
	logger  *slog.Logger
	group   singleflight.Group
	mu      sync.RWMutex
	vectors map[string][]float32

	hits, storeHits, misses, storeFails atomic.Int64
}

// NewCache creates a cache for vectors produced by model. store may be nil.
func NewCache(model string, store Store, logger *slog.Logger) *Cache {
	return &Cache{
		model:   model,
		store:   store,
		logger:  logger.With("system", "embedding-cache"),
		vectors: make(map[string][]float32),
	}
}

// Key returns the cache key of text under model.
func Key(model, text string) string {
	return fingerprint.MustDigest([]string{model, text})
}

// Get returns the cached vector for text, computing and storing it on a miss.
func (c *Cache) Get(ctx context.Context, text string, compute ComputeFunc) ([]float32, error) {
	key := Key(c.model, text)

	c.mu.RLock()
	vec, ok := c.vectors[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return vec, nil
	}

	// The shared fill outlives any one caller's cancellation; each caller
	// still stops waiting when its own context ends.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(fillCtx, key, text, compute)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

func (c *Cache) fill(ctx context.Context, key, text string, compute ComputeFunc) ([]float32, error) {
	if c.store != nil {
		vec, ok, err := c.store.Load(ctx, key)
		if err != nil {
			c.storeFails.Add(1)
			c.logger.WarnContext(ctx, "embedding store load failed", "key", fingerprint.Short(key), "error", err)
		}
		if ok {
			c.storeHits.Add(1)
			c.remember(key, vec)
			return vec, nil
		}
	}

	c.misses.Add(1)
	vec, err := compute(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty embedding for key %s", fingerprint.Short(key))
	}

	c.remember(key, vec)
	if c.store != nil {
		if err := c.store.Save(ctx, key, vec); err != nil {
			c.storeFails.Add(1)
			c.logger.WarnContext(ctx, "embedding store save failed", "key", fingerprint.Short(key), "error", err)
		}
	}
	return vec, nil
}

func (c *Cache) remember(key string, vec []float32) {
	c.mu.Lock()
	c.vectors[key] = vec
	c.mu.Unlock()
}

// Len returns the number of vectors held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Stats returns a snapshot of the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		StoreHits:  c.storeHits.Load(),
		Misses:     c.misses.Load(),
		StoreFails: c.storeFails.Load(),
	}
}

// Close drops the in-memory vectors and closes the store when it owns
// resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.vectors = make(map[string][]float32)
	c.mu.Unlock()

	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
