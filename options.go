package mathrender

import (
	"time"

	"go.uber.org/zap"
)

/*
Configuration uses the functional options pattern for both the Cache and the
Orchestrator:

    cache := NewCache[string](
        WithTTL(DefaultCacheTTL),
        WithCleanupInterval(DefaultCleanupInterval),
    )

    o := New(engine,
        WithBatchSize(20),
        WithLogger(logger),
        WithCacheOptions(WithMaxEntries(5000)),
    )

Adding an option never changes a constructor signature.
*/

// Orchestrator and cache defaults.
const (
	DefaultBatchSize       = 10
	DefaultBatchDelay      = 50 * time.Millisecond
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultReadyTimeout    = 10 * time.Second
	DefaultMinHits         = 2
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
)

type cacheConfig struct {
	maxEntries int
	ttl        time.Duration
	interval   time.Duration
	now        func() time.Time
}

type CacheOption func(*cacheConfig)

/*
WithCleanupInterval configures the janitor frequency.

If d > 0 and a TTL is set, a goroutine removes expired entries every d.
Otherwise expired entries are only dropped when Get finds them.
*/

func WithCleanupInterval(d time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.interval = d
	}
}

// WithTTL makes entries older than d invisible to Get and Peek.
func WithTTL(d time.Duration) CacheOption {
	return func(c *cacheConfig) {
		c.ttl = d
	}
}

// WithMaxEntries bounds the cache; the oldest entry is evicted on overflow.
// Zero means unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(c *cacheConfig) {
		c.maxEntries = n
	}
}

// WithClock replaces time.Now for creation times and age checks.
func WithClock(now func() time.Time) CacheOption {
	return func(c *cacheConfig) {
		if now != nil {
			c.now = now
		}
	}
}

type config struct {
	batchSize       int
	batchDelay      time.Duration
	retry           RetryPolicy
	readyTimeout    time.Duration
	strictReadiness bool
	cacheEnabled    bool
	preloadEnabled  bool
	lazyEnabled     bool
	watcher         VisibilityWatcher
	logger          *zap.Logger
	cacheOpts       []CacheOption
	now             func() time.Time
	sleep           sleepFunc
}

func defaultConfig() config {
	return config{
		batchSize:      DefaultBatchSize,
		batchDelay:     DefaultBatchDelay,
		retry:          DefaultRetryPolicy(),
		readyTimeout:   DefaultReadyTimeout,
		cacheEnabled:   true,
		preloadEnabled: true,
		lazyEnabled:    true,
		logger:         zap.NewNop(),
		now:            time.Now,
		sleep:          sleepContext,
	}
}

// Option configures an Orchestrator.
type Option func(*config)

// WithBatchSize sets how many tasks go to the engine per call. Values below
// one are ignored.
func WithBatchSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between batches while work remains.
func WithBatchDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.batchDelay = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.retry.MaxRetries = n
		}
	}
}

// WithRetryDelay sets the base of the exponential backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.retry.BaseDelay = d
		}
	}
}

// WithReadyTimeout bounds how long the first readiness wait blocks.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *config) {
		c.readyTimeout = d
	}
}

// WithStrictReadiness makes a readiness timeout an ErrEngineLoadTimeout
// instead of a permissive pass-through.
func WithStrictReadiness() Option {
	return func(c *config) {
		c.strictReadiness = true
	}
}

func WithCacheEnabled(enabled bool) Option {
	return func(c *config) {
		c.cacheEnabled = enabled
	}
}

func WithPreloadEnabled(enabled bool) Option {
	return func(c *config) {
		c.preloadEnabled = enabled
	}
}

// WithLazyEnabled turns visibility-deferred rendering on or off. When off,
// RenderLazy enqueues immediately at normal priority.
func WithLazyEnabled(enabled bool) Option {
	return func(c *config) {
		c.lazyEnabled = enabled
	}
}

// WithVisibilityWatcher installs the watcher RenderLazy registers elements
// with. Without one, RenderLazy degrades to an immediate enqueue.
func WithVisibilityWatcher(w VisibilityWatcher) Option {
	return func(c *config) {
		c.watcher = w
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheOptions forwards options to the render cache.
func WithCacheOptions(opts ...CacheOption) Option {
	return func(c *config) {
		c.cacheOpts = append(c.cacheOpts, opts...)
	}
}

// WithNow replaces the clock used for task timestamps and render timing.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func withSleep(sleep sleepFunc) Option {
	return func(c *config) {
		c.sleep = sleep
	}
}
