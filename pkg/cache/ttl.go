// Package cache provides a small expiring key/value store used to memoize
// remote lookups such as field catalogs.
package cache

import "time"

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

// TTLCache maps keys to values with a per-entry time to live.
//
// Expired entries are evicted lazily when they are read or enumerated; there
// is no background goroutine. A TTLCache is not safe for concurrent use.
// Callers sharing one instance across goroutines must serialize access.
type TTLCache[K comparable, V any] struct {
	entries map[K]entry[V]
	now     func() time.Time
}

// New creates an empty cache that uses the wall clock.
func New[K comparable, V any]() *TTLCache[K, V] {
	return NewWithClock[K, V](time.Now)
}

// NewWithClock creates an empty cache that reads the time from now.
func NewWithClock[K comparable, V any](now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[K, V]{
		entries: make(map[K]entry[V]),
		now:     now,
	}
}

// Store saves value under key for ttl. A non-positive ttl never expires.
func (c *TTLCache[K, V]) Store(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Get returns the value for key if it is present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Remove deletes key. Removing a missing key is a no-op.
func (c *TTLCache[K, V]) Remove(key K) {
	delete(c.entries, key)
}

// Keys returns the keys of all live entries in no particular order.
func (c *TTLCache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.entries))
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live entries.
func (c *TTLCache[K, V]) Len() int {
	return len(c.Keys())
}

func (c *TTLCache[K, V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}
