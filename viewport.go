package mathrender

import (
	"errors"
	"sync"
)

// Rect is an axis-aligned box in page coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Expand grows r by m on every side.
func (r Rect) Expand(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
}

// Intersect returns the overlap of r and o, which may be empty.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 < x0 || y1 < y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Positioned elements expose their layout box to a ViewportWatcher.
type Positioned interface {
	Bounds() Rect
}

var ErrNotPositioned = errors.New("mathrender: element does not expose bounds")

// Intersection defaults: a 50px margin around the viewport, 1% of the element visible.
const (
	DefaultRootMargin = 50
	DefaultThreshold  = 0.01
)

type observation struct {
	el        Element
	onVisible func()
	visible   bool
}

/*
ViewportWatcher is a geometric VisibilityWatcher.

The viewport is grown by the root margin on every side and each observed
element's intersection ratio (overlap area / element area) is compared with
the threshold. Callbacks fire on the transition from not visible to visible,
including right after Observe when the element already is. Moving the
viewport with SetViewport or ScrollTo re-checks every observation.

Observed elements must implement Positioned and be comparable.
*/

type ViewportWatcher struct {
	mu           sync.Mutex
	viewport     Rect
	margin       float64
	threshold    float64
	observations []*observation
}

type ViewportOption func(*ViewportWatcher)

func WithRootMargin(m float64) ViewportOption {
	return func(w *ViewportWatcher) {
		w.margin = m
	}
}

func WithThreshold(t float64) ViewportOption {
	return func(w *ViewportWatcher) {
		w.threshold = t
	}
}

func NewViewportWatcher(viewport Rect, opts ...ViewportOption) *ViewportWatcher {
	w := &ViewportWatcher{
		viewport:  viewport,
		margin:    DefaultRootMargin,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *ViewportWatcher) Observe(el Element, onVisible func()) error {
	if _, ok := el.(Positioned); !ok {
		return ErrNotPositioned
	}

	w.mu.Lock()
	w.observations = append(w.observations, &observation{el: el, onVisible: onVisible})
	fire := w.collectLocked()
	w.mu.Unlock()

	run(fire)
	return nil
}

func (w *ViewportWatcher) Unobserve(el Element) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.observations[:0]
	for _, o := range w.observations {
		if o.el != el {
			kept = append(kept, o)
		}
	}
	clear(w.observations[len(kept):])
	w.observations = kept
}

func (w *ViewportWatcher) Disconnect() {
	w.mu.Lock()
	w.observations = nil
	w.mu.Unlock()
}

// Observed is the number of elements still being watched.
func (w *ViewportWatcher) Observed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.observations)
}

// SetViewport moves or resizes the viewport and fires pending callbacks.
func (w *ViewportWatcher) SetViewport(r Rect) {
	w.mu.Lock()
	w.viewport = r
	fire := w.collectLocked()
	w.mu.Unlock()

	run(fire)
}

// ScrollTo moves the viewport's top edge to y.
func (w *ViewportWatcher) ScrollTo(y float64) {
	w.mu.Lock()
	r := w.viewport
	w.mu.Unlock()

	r.Y = y
	w.SetViewport(r)
}

// Ratio reports the intersection ratio of b against the current root.
func (w *ViewportWatcher) Ratio(b Rect) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ratioLocked(b)
}

func (w *ViewportWatcher) ratioLocked(b Rect) float64 {
	root := w.viewport.Expand(w.margin)
	if b.Area() == 0 {
		// zero-area targets count as fully visible when they touch the root
		if root.contains(b.X, b.Y) {
			return 1
		}
		return 0
	}
	return root.Intersect(b).Area() / b.Area()
}

func (w *ViewportWatcher) collectLocked() []func() {
	var fire []func()
	for _, o := range w.observations {
		ratio := w.ratioLocked(o.el.(Positioned).Bounds())
		nowVisible := ratio > 0 && ratio >= w.threshold
		if nowVisible && !o.visible {
			fire = append(fire, o.onVisible)
		}
		o.visible = nowVisible
	}
	return fire
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
