// Package cache provides the bounded, expiring caches that are injected into
// the resolver and the Modrinth lookup.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTL is a size-bounded cache whose entries expire after a fixed duration.
// It is safe for concurrent use.
type TTL[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// New returns a cache holding at most size entries for ttl each. A size of
// zero or less means unbounded; a ttl of zero or less means no expiry.
func New[K comparable, V any](size int, ttl time.Duration) *TTL[K, V] {
	if size < 0 {
		size = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &TTL[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.lru.Get(key)
}

// Add stores value under key and reports whether an older entry was evicted.
func (c *TTL[K, V]) Add(key K, value V) bool {
	if c == nil {
		return false
	}
	return c.lru.Add(key, value)
}

func (c *TTL[K, V]) Remove(key K) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

func (c *TTL[K, V]) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *TTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
