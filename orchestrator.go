package mathrender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*
Orchestrator batches formula render requests to a typesetting Engine.

================================================================================
DATA FLOW
================================================================================

    Render / RenderBatch / RenderLazy / Preload
        → clean + validate + wrap, build RenderTask
        → render queue (or straight to the engine with Immediate)
        → processor: wait for readiness, take a batch, consult the cache
        → cache misses go to Engine.Typeset under the retry policy
        → markup cached, metrics updated, waiters released

================================================================================
CONCURRENCY MODEL
================================================================================

- One processor goroutine at most. It is started by the first enqueue on an
  idle orchestrator and exits once the queue is empty.
- mu guards the queue, the counters, and lifecycle flags.
- typesetMu serializes engine calls so the engine sees one batch at a time,
  including Immediate renders issued from caller goroutines.
- A batch in flight is never preempted; higher priority work enqueued
  meanwhile goes first in the next batch.
- A failed batch marks only its own tasks failed; the loop moves on.

================================================================================
LIFECYCLE
================================================================================

New → use → Close. Close stops the processor, fails queued tasks with
ErrClosed, disconnects the visibility watcher, and drops the cache. Elements
are borrowed; nothing here owns them.
*/

type Orchestrator struct {
	engine Engine
	cfg    config
	logger *zap.Logger
	cache  *Cache[string]
	lazy   *lazyTrigger

	mu         sync.Mutex
	gate       *Gate
	queue      renderQueue
	processing bool
	counters   renderCounters
	closed     bool

	typesetMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RenderOptions tune a single render request.
type RenderOptions struct {
	Inline    bool
	Priority  int
	Immediate bool
}

type RenderOption func(*RenderOptions)

// Inline renders as inline math rather than display math.
func Inline() RenderOption {
	return func(o *RenderOptions) {
		o.Inline = true
	}
}

func WithPriority(p int) RenderOption {
	return func(o *RenderOptions) {
		o.Priority = p
	}
}

// Immediate skips the queue and typesets on the caller's goroutine.
func Immediate() RenderOption {
	return func(o *RenderOptions) {
		o.Immediate = true
	}
}

// Item is one entry of RenderBatch.
type Item struct {
	Element Element
	Formula string
	Inline  bool
}

func New(engine Engine, opts ...Option) *Orchestrator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		engine: engine,
		cfg:    cfg,
		logger: cfg.logger,
		cache:  NewCache[string](cfg.cacheOpts...),
		lazy:   newLazyTrigger(cfg.watcher, cfg.lazyEnabled, cfg.logger),
		gate:   NewGate(engine, cfg.readyTimeout, cfg.strictReadiness, cfg.logger),
		ctx:    ctx,
		cancel: cancel,
	}
}

// WaitForReady blocks until the engine is ready or the readiness timeout
// passes. The timeout is not an error unless WithStrictReadiness was given.
func (o *Orchestrator) WaitForReady(ctx context.Context) error {
	return o.currentGate().Wait(ctx)
}

// SignalReady is raised by the host once the engine has loaded.
func (o *Orchestrator) SignalReady() {
	o.currentGate().Signal()
}

func (o *Orchestrator) ReadinessState() ReadinessState {
	return o.currentGate().State()
}

func (o *Orchestrator) currentGate() *Gate {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gate
}

// Render typesets formula into el and blocks until it is done.
//
// If ctx ends first Render returns ctx.Err(); the queued task still runs.
func (o *Orchestrator) Render(ctx context.Context, el Element, formula string, opts ...RenderOption) error {
	ro := RenderOptions{Priority: PriorityNormal}
	for _, opt := range opts {
		opt(&ro)
	}

	task, err := o.newTask(el, formula, ro.Inline, ro.Priority)
	if err != nil {
		el.SetState(StateError)
		return err
	}
	task.done = make(chan error, 1)

	if ro.Immediate {
		if o.isClosed() {
			return ErrClosed
		}
		if err := o.currentGate().Wait(ctx); err != nil {
			o.fail([]*RenderTask{task}, err)
			return err
		}
		return o.process(ctx, []*RenderTask{task})
	}

	if err := o.enqueue(task); err != nil {
		return err
	}
	return wait(ctx, task)
}

// RenderBatch renders every item and waits for all of them. The returned
// error joins the failures of individual items.
func (o *Orchestrator) RenderBatch(ctx context.Context, items []Item) error {
	var errs []error
	tasks := make([]*RenderTask, 0, len(items))

	for _, it := range items {
		task, err := o.newTask(it.Element, it.Formula, it.Inline, PriorityNormal)
		if err != nil {
			it.Element.SetState(StateError)
			errs = append(errs, err)
			continue
		}
		task.done = make(chan error, 1)
		if err := o.enqueue(task); err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		if err := wait(ctx, task); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	return errors.Join(errs...)
}

// RenderLazy renders formula into el once el first becomes visible. It never
// blocks; failures are logged.
func (o *Orchestrator) RenderLazy(el Element, formula string, opts ...RenderOption) {
	ro := RenderOptions{}
	for _, opt := range opts {
		opt(&ro)
	}

	task, err := o.newTask(el, formula, ro.Inline, PriorityNormal)
	if err != nil {
		el.SetState(StateError)
		o.logger.Warn("lazy render rejected", zap.Error(err))
		return
	}

	enqueue := func(priority int) func() {
		return func() {
			task.Priority = priority
			task.Timestamp = o.cfg.now()
			if err := o.enqueue(task); err != nil {
				o.logger.Debug("lazy render dropped", zap.String("task", task.ID), zap.Error(err))
			}
		}
	}

	o.lazy.observe(el, enqueue(PriorityVisible), enqueue(PriorityNormal))
}

// Preload renders formulas off-screen to warm the cache and returns how many
// were rendered. Failures are logged, not returned.
func (o *Orchestrator) Preload(ctx context.Context, formulas []string) int {
	if !o.cfg.preloadEnabled || !o.cfg.cacheEnabled {
		return 0
	}

	if err := o.currentGate().Wait(ctx); err != nil {
		o.logger.Warn("preload skipped", zap.Error(err))
		return 0
	}

	seen := make(map[string]bool, len(formulas))
	var tasks []*RenderTask
	for _, f := range formulas {
		key := CacheKey(Clean(f), false)
		if seen[key] || o.cache.Contains(key) {
			continue
		}
		seen[key] = true

		task, err := o.newTask(NewDetachedElement(), f, false, PriorityPreload)
		if err != nil {
			o.logger.Warn("preload formula rejected", zap.String("formula", f), zap.Error(err))
			continue
		}
		task.done = make(chan error, 1)
		if err := o.enqueue(task); err != nil {
			o.logger.Warn("preload aborted", zap.Error(err))
			break
		}
		tasks = append(tasks, task)
	}

	rendered := 0
	for _, task := range tasks {
		if err := wait(ctx, task); err != nil {
			o.logger.Warn("preload render failed", zap.String("task", task.ID), zap.Error(err))
			continue
		}
		rendered++
	}

	o.logger.Info("preload complete", zap.Int("rendered", rendered), zap.Int("requested", len(formulas)))
	return rendered
}

// Clear asks the engine to drop prior markup for elements.
func (o *Orchestrator) Clear(elements []Element) {
	o.typesetMu.Lock()
	o.engine.Clear(elements)
	o.typesetMu.Unlock()

	for _, el := range elements {
		el.SetState(StatePending)
	}
}

func (o *Orchestrator) Metrics() Metrics {
	o.mu.Lock()
	m := Metrics{
		TotalRenders:      o.counters.total,
		CacheHits:         o.counters.hits,
		FailedRenders:     o.counters.failed,
		AverageRenderTime: o.counters.average,
		QueueLength:       o.queue.len(),
	}
	o.mu.Unlock()

	m.CacheSize = o.cache.Len()
	return m
}

func (o *Orchestrator) ResetMetrics() {
	o.mu.Lock()
	o.counters = renderCounters{}
	o.mu.Unlock()
}

// ClearCache drops cached markup older than olderThan, or everything when
// olderThan <= 0. It returns the number of entries removed.
func (o *Orchestrator) ClearCache(olderThan time.Duration) int {
	if olderThan <= 0 {
		n := o.cache.Len()
		o.cache.Clear()
		o.logger.Info("render cache cleared", zap.Int("removed", n))
		return n
	}

	n := o.cache.EvictOlderThan(olderThan)
	o.logger.Info("expired render cache entries removed", zap.Int("removed", n), zap.Duration("older_than", olderThan))
	return n
}

// OptimizeCache drops entries hit fewer than minHits times (DefaultMinHits
// when minHits <= 0). It returns the number of entries removed.
func (o *Orchestrator) OptimizeCache(minHits int) int {
	if minHits <= 0 {
		minHits = DefaultMinHits
	}
	n := o.cache.EvictLowHitCount(uint64(minHits))
	o.logger.Info("render cache optimized", zap.Int("removed", n), zap.Int("min_hits", minHits))
	return n
}

// Cache exposes the render cache for inspection.
func (o *Orchestrator) Cache() *Cache[string] {
	return o.cache
}

// Reset returns the orchestrator to its freshly constructed state: queued
// tasks fail with ErrReset, the cache and counters are emptied, lazy
// observations are dropped, and readiness must be signaled again.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	pending := o.queue.drain()
	o.counters = renderCounters{}
	old := o.gate
	o.gate = NewGate(o.engine, o.cfg.readyTimeout, o.cfg.strictReadiness, o.logger)
	o.mu.Unlock()

	old.retire()

	o.lazy.disconnect()
	o.cache.Clear()
	o.fail(pending, ErrReset)
}

// Close stops the orchestrator. Safe to call more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.lazy.disconnect()
	o.wg.Wait()

	o.mu.Lock()
	pending := o.queue.drain()
	o.mu.Unlock()

	for _, t := range pending {
		t.finish(ErrClosed)
	}

	o.cache.Stop()
	o.cache.Clear()
	return nil
}

func (o *Orchestrator) newTask(el Element, formula string, inline bool, priority int) (*RenderTask, error) {
	cleaned := Clean(formula)
	if err := Validate(cleaned); err != nil {
		return nil, err
	}

	return &RenderTask{
		ID:        uuid.NewString(),
		Element:   el,
		Formula:   cleaned,
		Source:    Wrap(cleaned, inline),
		Key:       CacheKey(cleaned, inline),
		Inline:    inline,
		Priority:  priority,
		Timestamp: o.cfg.now(),
	}, nil
}

// enqueue appends a task and starts the processor if it is idle.
func (o *Orchestrator) enqueue(task *RenderTask) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	o.queue.push(task)

	if !o.processing {
		o.processing = true
		o.wg.Add(1)
		go o.processQueue()
	}
	return nil
}

/*
processQueue drains the render queue batch by batch.

Each round waits for readiness, takes up to batchSize tasks in priority
order, and renders them. While work remains it yields for batchDelay before
the next round. The goroutine exits when the queue is empty or the
orchestrator is closed; the next enqueue starts a new one.
*/

func (o *Orchestrator) processQueue() {
	defer o.wg.Done()

	for {
		if o.idle() {
			return
		}

		waitErr := o.currentGate().Wait(o.ctx)
		if o.ctx.Err() != nil {
			o.stopProcessing()
			return
		}
		if errors.Is(waitErr, ErrReset) {
			continue
		}

		o.mu.Lock()
		batch := o.queue.next(o.cfg.batchSize)
		if len(batch) == 0 {
			o.processing = false
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()

		if waitErr != nil {
			o.fail(batch, waitErr)
		} else if err := o.process(o.ctx, batch); err != nil {
			o.logger.Error("render batch failed", zap.Int("batch", len(batch)), zap.Error(err))
		}

		o.mu.Lock()
		more := o.queue.len() > 0
		o.mu.Unlock()

		if more {
			if err := o.cfg.sleep(o.ctx, o.cfg.batchDelay); err != nil {
				o.stopProcessing()
				return
			}
		}
	}
}

// idle clears the processing flag when there is nothing left to do.
func (o *Orchestrator) idle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.queue.len() == 0 {
		o.processing = false
		return true
	}
	return false
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) stopProcessing() {
	o.mu.Lock()
	o.processing = false
	o.mu.Unlock()
}

// process renders one batch: cache hits are served directly, the rest go to
// the engine in a single retried call.
func (o *Orchestrator) process(ctx context.Context, batch []*RenderTask) error {
	start := o.cfg.now()

	misses := make([]*RenderTask, 0, len(batch))
	var served []*RenderTask
	for _, t := range batch {
		if o.cfg.cacheEnabled {
			if markup, ok := o.cache.Get(t.Key); ok {
				t.Element.SetMarkup(markup)
				t.Element.SetState(StateRendered)
				served = append(served, t)
				continue
			}
		}
		misses = append(misses, t)
	}
	hits := len(served)

	var err error
	if len(misses) > 0 {
		err = o.typeset(ctx, misses)
	}
	elapsed := o.cfg.now().Sub(start)

	o.mu.Lock()
	o.counters.hits += uint64(hits)
	if err != nil {
		o.counters.failed += uint64(len(misses))
		o.counters.record(hits, elapsed)
	} else {
		o.counters.record(len(batch), elapsed)
	}
	o.mu.Unlock()

	for _, t := range served {
		t.finish(nil)
	}

	if err != nil {
		o.fail(misses, err)
		return err
	}

	for _, t := range misses {
		if markup := t.Element.Markup(); o.cfg.cacheEnabled && markup != "" {
			o.cache.Put(t.Key, markup)
		}
		t.Element.SetState(StateRendered)
		t.finish(nil)
	}

	o.logger.Debug("render batch complete",
		zap.Int("batch", len(batch)),
		zap.Int("cache_hits", hits),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (o *Orchestrator) typeset(ctx context.Context, tasks []*RenderTask) error {
	elements := make([]Element, len(tasks))

	onFailure := func(attempt int, err error) {
		o.logger.Warn("typeset attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", o.cfg.retry.Attempts()),
			zap.Int("batch", len(tasks)),
			zap.String("first_task", tasks[0].ID),
			zap.Error(err))
	}

	_, err := retry(ctx, o.cfg.retry, o.cfg.sleep, onFailure, func(ctx context.Context) (struct{}, error) {
		for i, t := range tasks {
			t.Element.SetSource(t.Source)
			t.Element.SetState(StatePending)
			elements[i] = t.Element
		}
		return struct{}{}, o.typesetOnce(ctx, elements)
	})
	return err
}

func (o *Orchestrator) typesetOnce(ctx context.Context, elements []Element) error {
	o.typesetMu.Lock()
	defer o.typesetMu.Unlock()

	if !o.engine.Ready() {
		return engineError(errors.New("engine not available"))
	}
	if err := o.engine.Typeset(ctx, elements); err != nil {
		return engineError(err)
	}
	return nil
}

// fail marks tasks as errored and releases their waiters. Fire-and-forget
// tasks are logged instead.
func (o *Orchestrator) fail(tasks []*RenderTask, err error) {
	for _, t := range tasks {
		t.Element.SetState(StateError)
		if t.done == nil {
			o.logger.Warn("background render failed",
				zap.String("task", t.ID),
				zap.String("formula", t.Formula),
				zap.Error(err))
		}
		t.finish(err)
	}
}

func wait(ctx context.Context, task *RenderTask) error {
	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("render %s: %w", task.ID, ctx.Err())
	}
}
