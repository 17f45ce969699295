package mathrender

import (
	"sync"

	"go.uber.org/zap"
)

// VisibilityWatcher reports when observed elements enter the viewport.
//
// Observe registers onVisible for el; it is invoked when el becomes visible.
// Observe fails when the watcher cannot track el. Unobserve and Disconnect
// stop delivery for one element or all of them.
type VisibilityWatcher interface {
	Observe(el Element, onVisible func()) error
	Unobserve(el Element)
	Disconnect()
}

// lazyTrigger defers enqueueing until an element is first visible.
type lazyTrigger struct {
	watcher VisibilityWatcher
	enabled bool
	logger  *zap.Logger
}

func newLazyTrigger(w VisibilityWatcher, enabled bool, logger *zap.Logger) *lazyTrigger {
	return &lazyTrigger{watcher: w, enabled: enabled && w != nil, logger: logger}
}

// observe calls visible once when el first becomes visible, or fallback right
// away when watching is off or the watcher rejects el.
func (l *lazyTrigger) observe(el Element, visible, fallback func()) {
	if !l.enabled {
		fallback()
		return
	}

	var once sync.Once
	err := l.watcher.Observe(el, func() {
		once.Do(func() {
			l.watcher.Unobserve(el)
			visible()
		})
	})
	if err != nil {
		l.logger.Debug("visibility watch unavailable, rendering now", zap.Error(err))
		fallback()
	}
}

func (l *lazyTrigger) disconnect() {
	if l.watcher != nil {
		l.watcher.Disconnect()
	}
}
