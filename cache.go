package mathrender

import (
	"container/list"
	"sync"
	"time"
)

/*
Cache is a thread-safe, in-memory store of rendered values keyed by string.

The orchestrator keeps one Cache[string] mapping cleaned formula text to the
markup the typesetting engine produced for it. The same type backs Memoize.

================================================================================
ARCHITECTURAL OVERVIEW
================================================================================

1. Hash Map (map[string]*list.Element)
   - O(1) key lookup.

2. Doubly Linked List (*list.List)
   - Ordered by creation time, newest at the front.
   - Put on an existing key refreshes its creation time and moves it to the
     front, so the back of the list always holds the oldest entry.
   - Capacity eviction and age sweeps start from the back.

================================================================================
ENTRY LIFETIME
================================================================================

An entry is created by Put with a hit count of 1 and each Get that finds it
adds one more. Entries leave the cache through:

- Delete / Clear
- EvictOlderThan (age sweep)
- EvictLowHitCount (optimization sweep)
- WithMaxEntries capacity pressure (oldest first)
- WithTTL lazy expiration on Get and the optional janitor sweep

Without WithMaxEntries the cache is unbounded in count.
*/

type Cache[V any] struct {
	data       map[string]*list.Element
	order      *list.List // each element stores an *entry[V]
	mu         sync.RWMutex
	maxEntries int
	ttl        time.Duration
	interval   time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
	stats      CacheStats
}

// NewCache builds a cache and starts its janitor when both WithTTL and
// WithCleanupInterval are set.
func NewCache[V any](opts ...CacheOption) *Cache[V] {
	cfg := cacheConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cache[V]{
		data:       make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: cfg.maxEntries,
		ttl:        cfg.ttl,
		interval:   cfg.interval,
		now:        cfg.now,
		stopChan:   make(chan struct{}),
	}

	c.startJanitor()

	return c
}

/*
Put inserts or replaces the value stored under key.

Replacing an entry resets it as if it were new: creation time is now and
the hit count goes back to 1. When the cache is at capacity the oldest entry
is evicted first.
*/

func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, found := c.data[key]; found {
		e := elem.Value.(*entry[V])
		e.Value = value
		e.CreatedAt = now
		e.HitCount = 1
		c.order.MoveToFront(elem)
		return
	}

	if c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		c.evictOldest()
	}

	e := &entry[V]{
		key: key,
		CacheEntry: CacheEntry[V]{
			Value:     value,
			CreatedAt: now,
			HitCount:  1,
		},
	}

	c.data[key] = c.order.PushFront(e)
}

/*
Get returns the value stored under key and counts a hit on the entry.

A miss (absent or expired under WithTTL) increments the miss counter.
Expired entries are removed on the spot. Exclusive locking is required
because hits mutate the entry.
*/

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	elem, found := c.data[key]
	if !found {
		c.stats.Misses++
		return zero, false
	}

	e := elem.Value.(*entry[V])

	if c.expired(e, c.now()) {
		c.removeElement(elem)
		c.stats.Misses++
		return zero, false
	}

	e.HitCount++
	c.stats.Hits++
	return e.Value, true
}

// Peek returns a snapshot of the entry under key without counting a hit.
func (c *Cache[V]) Peek(key string) (CacheEntry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, found := c.data[key]
	if !found {
		return CacheEntry[V]{}, false
	}
	e := elem.Value.(*entry[V])
	if c.expired(e, c.now()) {
		return CacheEntry[V]{}, false
	}
	return e.CacheEntry, true
}

// Contains reports whether key is present and not expired.
func (c *Cache[V]) Contains(key string) bool {
	_, ok := c.Peek(key)
	return ok
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.data[key]; found {
		c.removeElement(elem)
	}
}

// Clear drops every entry. Statistics are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Keys lists keys from newest to oldest.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[V]).key)
	}
	return keys
}

func (c *Cache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	if c.ttl <= 0 {
		return false
	}
	return e.olderThan(now, c.ttl)
}
