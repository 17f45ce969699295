package mathrender

import "time"

/*
startJanitor launches the background expiration worker.

================================================================================
EXECUTION MODEL
================================================================================

- If interval <= 0 or ttl <= 0:
    → Active cleanup is disabled.
    → Expired entries are only dropped lazily by Get.

- Otherwise:
    → A time.Ticker fires every interval.
    → Each tick removes entries older than ttl (same sweep as EvictOlderThan).

DefaultCacheTTL (5m) and DefaultCleanupInterval (1m) are a reasonable pair
for long-running hosts.
*/

func (c *Cache[V]) startJanitor() {
	if c.interval <= 0 || c.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				c.EvictOlderThan(c.ttl)
			case <-c.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop terminates the janitor goroutine. Safe to call more than once and
// on caches that never started one.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
