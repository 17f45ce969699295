package mathrender

import (
	"time"
)

/*
CacheEntry is the metadata kept next to every cached value.

STRUCTURE

Value     -> the cached data (rendered markup for the render cache)
CreatedAt -> when the value was stored by Put
HitCount  -> 1 on creation, +1 per Get that returns it

Age sweeps compare CreatedAt against the cache clock; optimization sweeps
compare HitCount against a minimum.
*/

type CacheEntry[V any] struct {
	Value     V
	CreatedAt time.Time
	HitCount  uint64
}

// entry is the list payload. The key is kept so eviction from the list side
// can delete the map side.
type entry[V any] struct {
	key string
	CacheEntry[V]
}

// olderThan reports whether the entry's age at now exceeds maxAge.
func (e *entry[V]) olderThan(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.CreatedAt) > maxAge
}
