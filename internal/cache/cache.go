// Package cache keeps recently fetched payloads in memory for a fixed TTL and
// collapses concurrent fetches of the same key into one.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the payload for a key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	payload   T
	fetchedAt time.Time
}

// Stats are cumulative counters since construction.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Coalesced uint64
	Failures  uint64
	Entries   int
}

// Cache is safe for concurrent use. The zero value is not usable; call New.
type Cache[T any] struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[T]

	hits      atomic.Uint64
	misses    atomic.Uint64
	coalesced atomic.Uint64
	failures  atomic.Uint64
}

// Option customises a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs a cache whose entries stay fresh for ttl.
func New[T any](ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[T]),
	}
}

// TTL returns the freshness window.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// GetOrFetch returns the cached payload for key when it is younger than the
// TTL. Otherwise it calls fetch, sharing one call between concurrent callers
// of the same key. Errors are never cached.
//
// The shared fetch does not observe the callers' cancellation; a caller whose
// ctx ends stops waiting but the fetch completes and populates the cache.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	if v, ok := c.fresh(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	return c.do(ctx, key, fetch, true)
}

// Refresh calls fetch whatever the age of the stored entry and stores the
// result. It joins the same in-flight call as GetOrFetch, so a refresh and a
// concurrent read of key cause one fetch.
func (c *Cache[T]) Refresh(ctx context.Context, key string, fetch FetchFunc[T]) (T, error) {
	return c.do(ctx, key, fetch, false)
}

func (c *Cache[T]) do(ctx context.Context, key string, fetch FetchFunc[T], reuseFresh bool) (T, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A caller that lost the race to a just-finished fetch must not refetch.
		if reuseFresh {
			if v, ok := c.fresh(key); ok {
				return v, nil
			}
		}
		c.misses.Add(1)
		v, err := fetch(detached)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.coalesced.Add(1)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Get returns a fresh entry without fetching.
func (c *Cache[T]) Get(key string) (T, bool) {
	return c.fresh(key)
}

// Put stores v under key as freshly fetched.
func (c *Cache[T]) Put(key string, v T) {
	c.mu.Lock()
	c.entries[key] = entry[T]{payload: v, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Stale returns the last stored payload regardless of age, with the time it
// was fetched.
func (c *Cache[T]) Stale(key string) (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.payload, e.fetchedAt, ok
}

// Invalidate drops key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Failures:  c.failures.Load(),
		Entries:   n,
	}
}

func (c *Cache[T]) fresh(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.payload, true
}
