// Package cache provides an in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

// MemoryCache is an in-memory cache with TTL support.
type MemoryCache[V any] struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// cacheEntry holds a cached value with expiration metadata.
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache with the specified TTL.
// Expired entries are dropped on read and by Purge.
func NewMemoryCache[V any](ttl time.Duration) *MemoryCache[V] {
	return &MemoryCache[V]{ttl: ttl, now: time.Now}
}

// Get returns the value and true if found and not expired.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	var zero V
	value, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}

	entry := value.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.entries.CompareAndDelete(key, value)
		return zero, false
	}

	return entry.value, true
}

// Set stores a value with the configured TTL.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.entries.Store(key, &cacheEntry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Purge removes expired entries and returns how many were removed.
func (c *MemoryCache[V]) Purge() int {
	now := c.now()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		entry := value.(*cacheEntry[V])
		if now.After(entry.expiresAt) {
			if c.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Len counts entries, expired ones included.
func (c *MemoryCache[V]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
