package mathrender

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errEngineDown = errors.New("engine down")

// fakeEngine records every Typeset call as the list of element sources.
type fakeEngine struct {
	mu      sync.Mutex
	ready   bool
	calls   [][]string
	cleared int
	failFn  func(call int) error
}

func newFakeEngine(ready bool) *fakeEngine {
	return &fakeEngine{ready: ready}
}

func (f *fakeEngine) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeEngine) setReady(ready bool) {
	f.mu.Lock()
	f.ready = ready
	f.mu.Unlock()
}

func (f *fakeEngine) failWith(fn func(call int) error) {
	f.mu.Lock()
	f.failFn = fn
	f.mu.Unlock()
}

func (f *fakeEngine) Typeset(ctx context.Context, elements []Element) error {
	sources := make([]string, len(elements))
	for i, el := range elements {
		sources[i] = el.Source()
	}

	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, sources)
	failFn := f.failFn
	f.mu.Unlock()

	if failFn != nil {
		if err := failFn(call); err != nil {
			return err
		}
	}
	for _, el := range elements {
		el.SetMarkup("<svg>" + el.Source() + "</svg>")
	}
	return nil
}

func (f *fakeEngine) Clear(elements []Element) {
	f.mu.Lock()
	f.cleared += len(elements)
	f.mu.Unlock()
	for _, el := range elements {
		el.SetMarkup("")
	}
}

func (f *fakeEngine) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// recordingSleeper returns immediately and remembers the requested delays.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
