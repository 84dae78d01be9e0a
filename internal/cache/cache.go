// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache memoizes values that are expensive to build and safe to
// share, such as compiled kernel programs.
package cache

import "sync"

// Cache maps keys to values built on first use. When the number of entries
// exceeds the soft limit, the least recently used quarter is evicted.
//
// Cache is safe for concurrent use and must not be copied.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*entry[V]
	softLimit int
	tick      int64

	hits, misses int
}

type entry[V any] struct {
	value V
	atime int64
}

// Stats reports cache occupancy and lookups.
type Stats struct {
	Len    int
	Hits   int
	Misses int
}

// New returns an empty cache. A softLimit of 0 means unlimited.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*entry[V]),
		softLimit: softLimit,
	}
}

// Get returns the value for key if present.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.tick++
	e.atime = c.tick
	return e.value, true
}

// Load returns the value for key, calling build on a miss. Errors are not
// cached. The lock is held while build runs, so concurrent callers for the
// same key build once.
func (c *Cache[K, V]) Load(key K, build func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	if e, ok := c.entries[key]; ok {
		c.hits++
		e.atime = c.tick
		return e.value, nil
	}
	c.misses++
	v, err := build()
	if err != nil {
		return v, err
	}
	c.entries[key] = &entry[V]{value: v, atime: c.tick}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictLocked()
	}
	return v, nil
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Len: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Clear drops every entry and resets the counters.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.hits, c.misses = 0, 0
}

// evictLocked shrinks the cache to three quarters of the soft limit,
// oldest access first.
func (c *Cache[K, V]) evictLocked() {
	target := max(c.softLimit*3/4, 1)
	for len(c.entries) > target {
		var (
			oldest K
			atime  int64 = -1
		)
		for k, e := range c.entries {
			if atime < 0 || e.atime < atime {
				oldest, atime = k, e.atime
			}
		}
		delete(c.entries, oldest)
	}
}
