package cacheutil

import (
	"sync"
	"time"
)

// Entry is a cached value and the time it was loaded.
type Entry[V any] struct {
	Value    V
	LoadedAt time.Time
}

// TTLCache is a keyed read-through cache. A zero TTL disables caching and
// every Get goes to the loader.
type TTLCache[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[K]Entry[V]
}

// New creates a cache whose entries expire after ttl.
func New[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{ttl: ttl, now: time.Now, entries: make(map[K]Entry[V])}
}

// Get returns the cached value for key or calls load and caches the result.
// Errors are never cached. The entry is re-checked after taking the write
// lock so concurrent misses load once.
func (c *TTLCache[K, V]) Get(key K, load func() (V, error)) (V, error) {
	if c.ttl <= 0 {
		return load()
	}

	c.mu.RLock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.LoadedAt) < c.ttl {
		c.mu.RUnlock()
		return e.Value, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.entries[key]; ok && now.Sub(e.LoadedAt) < c.ttl {
		return e.Value, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = Entry[V]{Value: v, LoadedAt: now}
	return v, nil
}

// Invalidate drops key.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// WriteThrough runs op and drops key when it succeeds.
func (c *TTLCache[K, V]) WriteThrough(key K, op func() error) error {
	if err := op(); err != nil {
		return err
	}
	c.Invalidate(key)
	return nil
}

// Len reports the number of cached entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
