package mathrender

import (
	"context"
	"sync"
)

// State is the visible render state of an element.
type State int

const (
	StatePending State = iota
	StateRendered
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendered:
		return "rendered"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Element is a borrowed handle to a node that displays one formula.
//
// Source is the formula text the engine reads; Markup is what the engine (or
// the cache) wrote back. The orchestrator never keeps an Element after its
// task completes.
type Element interface {
	Source() string
	SetSource(src string)
	Markup() string
	SetMarkup(markup string)
	SetState(state State)
}

// Engine is the external typesetting capability.
//
// Typeset replaces the source of each element with rendered markup via
// SetMarkup and fails as a whole if any element fails. Clear drops prior
// markup so elements can be typeset again.
type Engine interface {
	Ready() bool
	Typeset(ctx context.Context, elements []Element) error
	Clear(elements []Element)
}

// DetachedElement is an in-memory Element that is not attached to any page.
// Preload renders into these; hosts without a DOM can use them directly.
type DetachedElement struct {
	mu     sync.Mutex
	source string
	markup string
	state  State
	bounds Rect
}

func NewDetachedElement() *DetachedElement {
	return &DetachedElement{}
}

func (d *DetachedElement) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

func (d *DetachedElement) SetSource(src string) {
	d.mu.Lock()
	d.source = src
	d.markup = ""
	d.mu.Unlock()
}

func (d *DetachedElement) Markup() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.markup
}

func (d *DetachedElement) SetMarkup(markup string) {
	d.mu.Lock()
	d.markup = markup
	d.mu.Unlock()
}

func (d *DetachedElement) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *DetachedElement) SetState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

// Bounds lets a ViewportWatcher position the element.
func (d *DetachedElement) Bounds() Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds
}

func (d *DetachedElement) SetBounds(r Rect) {
	d.mu.Lock()
	d.bounds = r
	d.mu.Unlock()
}
