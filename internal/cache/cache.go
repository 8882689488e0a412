// Package cache implements a bounded in-memory cache with per-entry TTL and
// LRU eviction. It fronts the durable store for hot reads and is never a
// source of truth: every miss must be satisfiable by re-reading the store.
//
// The cache never returns an error; any anomaly degrades to a miss.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// timeNow is a seam for tests.
var timeNow = time.Now

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// Cache is a TTL+LRU bounded key→value store. The zero value is not usable;
// construct with New. Safe for concurrent use.
type Cache[V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used; element.Value is *entry[V]
}

// New creates a cache whose entries expire ttl after insertion and whose
// size never exceeds maxEntries (maxEntries <= 0 means unbounded).
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	return &Cache[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
	}
}

// Get returns the cached value for key. An entry older than the TTL is
// evicted and reported as a miss; a hit refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.expired(e, timeNow()) {
		c.removeLocked(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return e.value, true
}

// Set inserts or overwrites the value for key, resetting its TTL. If the
// insert pushes the cache over maxEntries, the least-recently-used entry is
// evicted; the entry just inserted is never the victim.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.insertedAt = timeNow()
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(&entry[V]{key: key, value: value, insertedAt: timeNow()})
	c.entries[key] = elem

	if c.maxEntries > 0 && c.lru.Len() > c.maxEntries {
		if victim := c.lru.Back(); victim != nil && victim != elem {
			c.removeLocked(victim)
		}
	}
}

// Invalidate removes key unconditionally. Mutating store operations must
// call this before returning so no caller observes a pre-mutation value.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sweep purges all TTL-expired entries and reports how many were removed.
// Correctness never depends on sweeping: Get checks the TTL itself.
func (c *Cache[V]) Sweep() int {
	now := timeNow()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry[V]), now) {
			c.removeLocked(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is canceled. It is a
// liveness optimization only and holds the cache lock only while sweeping.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	if c.ttl <= 0 {
		return false
	}
	return now.Sub(e.insertedAt) >= c.ttl
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[V])
	c.lru.Remove(elem)
	delete(c.entries, e.key)
}
