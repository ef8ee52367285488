// Package cache provides a small in-memory TTL cache for hot-path lookups
// such as per-project sampling configs and tier resolution.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	deadline time.Time
}

// TTL is a concurrency-safe cache whose entries share one time-to-live.
type TTL[K comparable, V any] struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[K]entry[V]
}

// NewTTL constructs a cache. A non-positive ttl disables expiry.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
	}
}

// Get returns the cached value when present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !item.deadline.IsZero() && time.Now().After(item.deadline) {
		c.Invalidate(key)
		return zero, false
	}
	return item.value, true
}

// Put stores a value under the cache-wide TTL.
func (c *TTL[K, V]) Put(key K, value V) {
	var deadline time.Time
	if c.ttl > 0 {
		deadline = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, deadline: deadline}
	c.mu.Unlock()
}

// Invalidate removes a single entry, forcing the next Get to miss.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	c.items = make(map[K]entry[V])
	c.mu.Unlock()
}
