// Package ttlcache provides a small in-memory cache with per-entry
// time-to-live, used for session-scoped caches such as identity
// resolution results.
package ttlcache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	data      T
	timestamp time.Time
	ttl       time.Duration
}

// Cache is a concurrency-safe map of keys to values with expiry.
// Expired entries are dropped lazily on access.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
}

// New creates a cache whose entries expire after ttl.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if time.Since(e.timestamp) > e.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.data, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{data: value, timestamp: time.Now(), ttl: c.ttl}
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// Len returns the number of entries, including any not yet reaped.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
