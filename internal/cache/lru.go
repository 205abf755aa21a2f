// Campusfeed - Adaptive Preference and Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/campusfeed

package cache

import (
	"sync"
	"time"
)

// Defaults applied by NewLRU for non-positive arguments.
const (
	DefaultCapacity = 10000
	DefaultTTL      = 5 * time.Minute
)

type entry[K comparable] struct {
	key       K
	expiresAt time.Time
	prev      *entry[K]
	next      *entry[K]
}

// LRU is a thread-safe least recently used key set with TTL. Lookups and
// inserts are O(1): a map for lookups plus a doubly-linked list for recency.
type LRU[K comparable] struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[K]*entry[K]

	// Sentinels: head.next is the most recently used entry, tail.prev the
	// least recently used.
	head *entry[K]
	tail *entry[K]

	hits      int64
	misses    int64
	evictions int64
}

// NewLRU creates a set holding at most capacity entries, each living for ttl.
func NewLRU[K comparable](capacity int, ttl time.Duration) *LRU[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &LRU[K]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[K]*entry[K], min(capacity, 1024)),
		head:     &entry[K]{},
		tail:     &entry[K]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// IsDuplicate reports whether key was seen within the TTL. A key that was
// not seen is recorded, so the next call with the same key returns true.
func (c *LRU[K]) IsDuplicate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.live(key); ok {
		c.moveToFront(e)
		c.hits++
		return true
	}

	c.put(key)
	c.misses++
	return false
}

// CleanupExpired removes all expired entries and returns how many it removed.
func (c *LRU[K]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.tail.prev; e != c.head; {
		prev := e.prev
		if now.After(e.expiresAt) {
			c.unlink(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Stats returns the cache counters.
func (c *LRU[K]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.items)}
}

// Internal methods; callers hold c.mu.

// live returns the entry for key, dropping it if it has expired.
func (c *LRU[K]) live(key K) (*entry[K], bool) {
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.unlink(e)
		return nil, false
	}
	return e, true
}

func (c *LRU[K]) put(key K) {
	expiresAt := c.now().Add(c.ttl)

	if e, ok := c.items[key]; ok {
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry[K]{key: key, expiresAt: expiresAt}
	c.pushFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		oldest := c.tail.prev
		if oldest == c.head {
			break
		}
		c.unlink(oldest)
		c.evictions++
	}
}

func (c *LRU[K]) pushFront(e *entry[K]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[K]) moveToFront(e *entry[K]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

func (c *LRU[K]) unlink(e *entry[K]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}
