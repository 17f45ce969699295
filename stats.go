package mathrender

import "time"

/*
CacheStats represents runtime counters of a Cache.

- Hits      → Get found a live entry
- Misses    → Get found nothing or an expired entry
- Evictions → entries removed by capacity pressure or sweeps

Fields are modified under the cache lock; Stats() returns a snapshot.

    hit_ratio = Hits / (Hits + Misses)
*/

type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

/*
Metrics is a snapshot of orchestrator activity.

TotalRenders counts tasks that ended with rendered markup, whether it came
from the cache or the engine. FailedRenders counts the cache misses sent to
the engine in a batch that exhausted its retries; cache hits drained in the
same batch still complete and count toward TotalRenders. AverageRenderTime is the running mean batch duration
weighted by batch size. CacheSize and QueueLength are read at snapshot time.

Counters live for the orchestrator lifetime and reset only via ResetMetrics.
*/

type Metrics struct {
	TotalRenders      uint64
	CacheHits         uint64
	FailedRenders     uint64
	AverageRenderTime time.Duration
	CacheSize         int
	QueueLength       int
}

// HitRate is CacheHits as a percentage of TotalRenders.
func (m Metrics) HitRate() float64 {
	if m.TotalRenders == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(m.TotalRenders) * 100
}

type renderCounters struct {
	total   uint64
	hits    uint64
	failed  uint64
	average time.Duration
}

// record folds a batch of n successful renders taking elapsed into the
// running average.
func (r *renderCounters) record(n int, elapsed time.Duration) {
	if n <= 0 {
		return
	}
	prev := r.total
	r.total += uint64(n)
	r.average = time.Duration((float64(r.average)*float64(prev) + float64(elapsed)) / float64(r.total))
}
