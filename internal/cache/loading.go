package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadingCache fills an LRUCache on demand. Concurrent misses on one key
// share a single load, and a load that started before Invalidate never
// stores its result.
type LoadingCache[T any] struct {
	lru   *LRUCache[T]
	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

func NewLoadingCache[T any](maxSize int, ttl time.Duration) *LoadingCache[T] {
	return &LoadingCache[T]{
		lru:         NewLRUCache[T](maxSize, ttl),
		generations: make(map[string]uint64),
	}
}

// Get returns the cached value for key or calls load to produce it.
func (c *LoadingCache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	gen := c.generation(key)
	// The load outlives the caller that started it; other callers may share it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		data, err := load(loadCtx)
		if err != nil {
			return data, err
		}
		if c.generation(key) == gen {
			c.lru.Set(key, data)
		}
		return data, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate drops key and detaches any load in flight for it.
func (c *LoadingCache[T]) Invalidate(key string) {
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()
	c.group.Forget(key)
	c.lru.Delete(key)
}

func (c *LoadingCache[T]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

func (c *LoadingCache[T]) CleanExpired() int { return c.lru.CleanExpired() }

func (c *LoadingCache[T]) Size() int { return c.lru.Size() }

func (c *LoadingCache[T]) Stats() Stats { return c.lru.Stats() }
