package store

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// TimedCache is a concurrency-safe key/value cache where every entry expires
// a fixed TTL after it was last written.
//
// Expired entries are never returned by Get. They are dropped by a background
// sweep running every 2*TTL; keys that are never read again are only removed
// by that sweep.
type TimedCache[V any] struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewTimedCache creates a TimedCache whose entries live for ttl.
// A non-positive ttl yields a cache that never stores anything.
func NewTimedCache[V any](ttl time.Duration) *TimedCache[V] {
	c := &TimedCache[V]{ttl: ttl}
	if ttl > 0 {
		c.items = cache.New(ttl, 2*ttl)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *TimedCache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it exists and has not expired.
func (c *TimedCache[V]) Get(key string) (V, bool) {
	var zero V
	if c.items == nil {
		return zero, false
	}

	raw, found := c.items.Get(key)
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value under key, replacing any existing entry and resetting
// its expiration to now + TTL.
func (c *TimedCache[V]) Set(key string, value V) {
	if c.items == nil {
		return
	}
	c.items.Set(key, value, cache.DefaultExpiration)
}

// Delete removes key from the cache.
func (c *TimedCache[V]) Delete(key string) {
	if c.items == nil {
		return
	}
	c.items.Delete(key)
}

// Len returns the number of stored entries, including expired entries that
// have not been swept yet.
func (c *TimedCache[V]) Len() int {
	if c.items == nil {
		return 0
	}
	return c.items.ItemCount()
}

// Flush drops every entry.
func (c *TimedCache[V]) Flush() {
	if c.items == nil {
		return
	}
	c.items.Flush()
}
