// Package watch re-runs a handler when watched files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// Handler is called with the path of a file that changed.
type Handler func(ctx context.Context, path string) error

// Watcher watches directories and reports settled writes to matching files.
// Editors often save in several steps, so events for one path are debounced:
// the handler runs once the path has been quiet for the debounce window.
type Watcher struct {
	watcher  *fsnotify.Watcher
	match    func(path string) bool
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithMatch limits the watcher to paths for which match returns true.
func WithMatch(match func(path string) bool) Option {
	return func(w *Watcher) {
		w.match = match
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New watches paths. A file path watches its directory, filtered to that
// file unless WithMatch overrides it.
func New(paths []string, handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]time.Time),
	}

	files := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			fw.Close()
			return nil, err
		}

		dir := abs
		if !info.IsDir() {
			dir = filepath.Dir(abs)
			files[abs] = true
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.match = func(path string) bool {
		return len(files) == 0 || files[path]
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run delivers events until ctx ends, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	tick := w.debounce / 4
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	path, err := filepath.Abs(event.Name)
	if err != nil || !w.match(path) {
		return
	}

	w.logger.Debug("file changed", zap.String("path", path), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if err := w.handler(ctx, path); err != nil {
			w.logger.Warn("handler failed", zap.String("path", path), zap.Error(err))
		}
	}
}
