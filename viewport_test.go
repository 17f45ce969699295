package mathrender

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}

	assert.Equal(t, Rect{X: 5, Y: 5, Width: 5, Height: 5}, a.Intersect(Rect{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.Zero(t, a.Intersect(Rect{X: 20, Y: 20, Width: 1, Height: 1}).Area())
	assert.Equal(t, Rect{X: -2, Y: -2, Width: 14, Height: 14}, a.Expand(2))
}

func TestViewportRatio(t *testing.T) {
	w := NewViewportWatcher(Rect{Width: 100, Height: 100}, WithRootMargin(0))

	assert.InDelta(t, 1.0, w.Ratio(Rect{X: 10, Y: 10, Width: 10, Height: 10}), 1e-9)
	assert.InDelta(t, 0.5, w.Ratio(Rect{X: 95, Y: 10, Width: 10, Height: 10}), 1e-9)
	assert.Zero(t, w.Ratio(Rect{X: 200, Y: 10, Width: 10, Height: 10}))
	assert.InDelta(t, 1.0, w.Ratio(Rect{X: 50, Y: 50}), 1e-9)
}

func TestRootMarginExtendsViewport(t *testing.T) {
	below := Rect{Y: 630, Width: 100, Height: 20}

	assert.Zero(t, NewViewportWatcher(Rect{Width: 800, Height: 600}, WithRootMargin(0)).Ratio(below))
	assert.Positive(t, NewViewportWatcher(Rect{Width: 800, Height: 600}).Ratio(below))
}

func TestViewportWatcherFiresOnEntry(t *testing.T) {
	w := NewViewportWatcher(Rect{Width: 800, Height: 600})

	el := NewDetachedElement()
	el.SetBounds(Rect{Y: 2000, Width: 200, Height: 40})

	fired := 0
	require.NoError(t, w.Observe(el, func() { fired++ }))
	assert.Zero(t, fired)

	w.ScrollTo(1600)
	assert.Equal(t, 1, fired)

	// staying visible does not fire again
	w.ScrollTo(1700)
	assert.Equal(t, 1, fired)

	// leaving and coming back does
	w.ScrollTo(0)
	w.ScrollTo(1800)
	assert.Equal(t, 2, fired)

	w.Unobserve(el)
	assert.Zero(t, w.Observed())
}

func TestViewportWatcherFiresForVisibleElement(t *testing.T) {
	w := NewViewportWatcher(Rect{Width: 800, Height: 600})
	el := NewDetachedElement()
	el.SetBounds(Rect{Y: 10, Width: 100, Height: 20})

	fired := false
	require.NoError(t, w.Observe(el, func() { fired = true }))
	assert.True(t, fired)
}

type unpositioned struct{ Element }

func TestViewportWatcherRejectsUnpositioned(t *testing.T) {
	w := NewViewportWatcher(Rect{Width: 800, Height: 600})
	assert.ErrorIs(t, w.Observe(unpositioned{}, func() {}), ErrNotPositioned)
}

func TestRenderLazyWaitsForVisibility(t *testing.T) {
	engine := newFakeEngine(true)
	watcher := NewViewportWatcher(Rect{Width: 800, Height: 600})
	o, _ := newTestOrchestrator(t, engine, WithVisibilityWatcher(watcher))

	el := NewDetachedElement()
	el.SetBounds(Rect{Y: 3000, Width: 300, Height: 50})

	o.RenderLazy(el, `\nabla \cdot \vec{E} = 0`)

	assert.Never(t, func() bool { return len(engine.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, o.Metrics().QueueLength)
	assert.Equal(t, 1, watcher.Observed())

	watcher.ScrollTo(2700)

	assert.Eventually(t, func() bool { return el.State() == StateRendered }, time.Second, time.Millisecond)
	assert.Equal(t, [][]string{{`\[\nabla \cdot \overrightarrow{E} = 0\]`}}, engine.Calls())
	assert.Zero(t, watcher.Observed())
}

func TestRenderLazyWithoutWatcherRendersNow(t *testing.T) {
	engine := newFakeEngine(true)
	o, _ := newTestOrchestrator(t, engine)

	el := NewDetachedElement()
	o.RenderLazy(el, "a+b", Inline())

	assert.Eventually(t, func() bool { return el.State() == StateRendered }, time.Second, time.Millisecond)
	assert.Equal(t, [][]string{{`\(a+b\)`}}, engine.Calls())
}

func TestRenderLazyFallsBackForUnpositioned(t *testing.T) {
	engine := newFakeEngine(true)
	watcher := NewViewportWatcher(Rect{Width: 800, Height: 600})
	o, _ := newTestOrchestrator(t, engine, WithVisibilityWatcher(watcher))

	el := &unpositioned{Element: NewDetachedElement()}
	o.RenderLazy(el, "q")

	assert.Eventually(t, func() bool { return len(engine.Calls()) == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, watcher.Observed())
}

func TestRenderLazyDisabled(t *testing.T) {
	engine := newFakeEngine(true)
	watcher := NewViewportWatcher(Rect{Width: 800, Height: 600})
	o, _ := newTestOrchestrator(t, engine, WithVisibilityWatcher(watcher), WithLazyEnabled(false))

	el := NewDetachedElement()
	el.SetBounds(Rect{Y: 5000, Width: 10, Height: 10})
	o.RenderLazy(el, "r")

	assert.Eventually(t, func() bool { return el.State() == StateRendered }, time.Second, time.Millisecond)
	assert.Zero(t, watcher.Observed())
}

func TestRenderLazyRejectsInvalid(t *testing.T) {
	engine := newFakeEngine(true)
	o, _ := newTestOrchestrator(t, engine)

	el := NewDetachedElement()
	o.RenderLazy(el, "   ")

	assert.Equal(t, StateError, el.State())
	require.NoError(t, o.Render(context.Background(), NewDetachedElement(), "ok"))
	assert.Len(t, engine.Calls(), 1)
}
