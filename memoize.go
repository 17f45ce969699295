package mathrender

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Memoize wraps op so results are stored in cache under key(arg).
//
// Concurrent calls for the same key share one invocation of op. Errors are
// returned to every caller of that invocation and never cached.
func Memoize[A, V any](op func(context.Context, A) (V, error), key func(A) string, cache *Cache[V]) func(context.Context, A) (V, error) {
	var group singleflight.Group

	return func(ctx context.Context, arg A) (V, error) {
		k := key(arg)
		if v, ok := cache.Get(k); ok {
			return v, nil
		}

		res, err, _ := group.Do(k, func() (any, error) {
			if e, ok := cache.Peek(k); ok {
				return e.Value, nil
			}
			v, err := op(ctx, arg)
			if err != nil {
				return nil, err
			}
			cache.Put(k, v)
			return v, nil
		})
		if err != nil {
			var zero V
			return zero, err
		}

		v, _ := res.(V)
		return v, nil
	}
}
