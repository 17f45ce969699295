package mathrender

import (
	"container/list"
	"time"
)

// EvictOlderThan removes every entry older than maxAge and returns how many
// were removed. Afterwards no entry has now-CreatedAt > maxAge.
func (c *Cache[V]) EvictOlderThan(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweep(func(e *entry[V], now time.Time) bool {
		return e.olderThan(now, maxAge)
	})
}

// EvictLowHitCount removes entries whose hit count is below minHits.
func (c *Cache[V]) EvictLowHitCount(minHits uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweep(func(e *entry[V], _ time.Time) bool {
		return e.HitCount < minHits
	})
}

// sweep walks from the oldest entry and removes the ones matching drop.
// Caller holds the write lock.
func (c *Cache[V]) sweep(drop func(e *entry[V], now time.Time) bool) int {
	now := c.now()
	removed := 0

	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if drop(elem.Value.(*entry[V]), now) {
			c.removeElement(elem)
			c.stats.Evictions++
			removed++
		}
		elem = prev
	}

	return removed
}

func (c *Cache[V]) evictOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
	}
}

func (c *Cache[V]) removeElement(e *list.Element) {
	c.order.Remove(e)
	delete(c.data, e.Value.(*entry[V]).key)
}
