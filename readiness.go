package mathrender

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReadinessState tracks the typesetting engine's startup.
type ReadinessState int

const (
	NotReady ReadinessState = iota
	Loading
	Ready
)

func (s ReadinessState) String() string {
	switch s {
	case NotReady:
		return "not-ready"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// ReadyProber reports whether the engine can typeset right now.
type ReadyProber interface {
	Ready() bool
}

/*
Gate lets any number of goroutines wait for the engine to become ready.

================================================================================
LIFECYCLE
================================================================================

    NotReady --first Wait--> Loading --Signal--> Ready

- Signal closes a channel exactly once; every waiter wakes on that close and
  the state flips to Ready under the same lock, so no waiter can observe
  Loading after being released.
- The first Wait starts a single deadline shared by all waiters.
- When the deadline passes without a Signal the gate goes back to NotReady
  and is marked degraded. Waits then return at once: nil by default, or
  ErrEngineLoadTimeout when strict. A later Signal still moves it to Ready.
- If the probe already reports ready, Wait signals and returns without
  blocking.
- A retired gate releases its waiters with ErrReset.
*/

type Gate struct {
	mu       sync.Mutex
	state    ReadinessState
	degraded bool
	deadline time.Time
	readyCh  chan struct{}
	once     sync.Once
	retired  chan struct{}
	retireMu sync.Once

	probe   ReadyProber
	timeout time.Duration
	strict  bool
	logger  *zap.Logger
}

// NewGate builds a gate. A timeout <= 0 waits without a deadline.
func NewGate(probe ReadyProber, timeout time.Duration, strict bool, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		readyCh: make(chan struct{}),
		retired: make(chan struct{}),
		probe:   probe,
		timeout: timeout,
		strict:  strict,
		logger:  logger,
	}
}

// Signal marks the engine ready. Only the first call has an effect.
func (g *Gate) Signal() {
	g.once.Do(func() {
		g.mu.Lock()
		g.state = Ready
		g.degraded = false
		close(g.readyCh)
		g.mu.Unlock()

		g.logger.Debug("typesetting engine ready")
	})
}

func (g *Gate) State() ReadinessState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Degraded reports whether a readiness wait has timed out without a Signal.
func (g *Gate) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

// Wait blocks until the engine is ready, the deadline passes, or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	if g.probe != nil && g.probe.Ready() {
		g.Signal()
		return nil
	}

	g.mu.Lock()
	if g.state == Ready {
		g.mu.Unlock()
		return nil
	}
	if g.degraded {
		g.mu.Unlock()
		return g.timeoutResult()
	}
	if g.state == NotReady {
		g.state = Loading
		if g.timeout > 0 {
			g.deadline = time.Now().Add(g.timeout)
		}
	}
	readyCh := g.readyCh
	deadline := g.deadline
	g.mu.Unlock()

	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.retired:
		return ErrReset
	case <-expired:
	}

	g.mu.Lock()
	if g.state == Ready {
		g.mu.Unlock()
		return nil
	}
	if !g.degraded {
		g.degraded = true
		g.state = NotReady
		g.logger.Warn("typesetting engine not ready, continuing without it",
			zap.Duration("timeout", g.timeout),
			zap.Error(ErrEngineLoadTimeout))
	}
	g.mu.Unlock()

	return g.timeoutResult()
}

// retire releases current waiters with ErrReset once the gate has been
// replaced.
func (g *Gate) retire() {
	g.retireMu.Do(func() {
		close(g.retired)
	})
}

func (g *Gate) timeoutResult() error {
	if g.strict {
		return ErrEngineLoadTimeout
	}
	return nil
}
