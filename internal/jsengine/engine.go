// Package jsengine hosts a JavaScript typesetter (KaTeX or anything exposing
// a compatible renderToString) in a goja runtime and adapts it to the
// mathrender.Engine interface.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender"
)

var (
	ErrNotLoaded = errors.New("jsengine: no typesetting script loaded")
	ErrNoEntry   = errors.New("jsengine: entry point is not a function")
)

// Engine executes a typesetting script. The goja runtime is not safe for
// concurrent use, so every call into it holds mu.
type Engine struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	render goja.Callable
	this   goja.Value

	readyMu sync.Mutex
	ready   bool
	onReady []func()

	logger *zap.Logger
	cache  *mathrender.Cache[string]
	memo   func(context.Context, request) (string, error)
}

type request struct {
	tex     string
	display bool
}

func (r request) key() string {
	return fmt.Sprintf("%t:%s", r.display, r.tex)
}

// New creates an engine with no script loaded. Rendered strings are memoized
// in a cache built from cacheOpts.
func New(logger *zap.Logger, cacheOpts ...mathrender.CacheOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	vm := goja.New()
	e := &Engine{
		vm:     vm,
		logger: logger,
		cache:  mathrender.NewCache[string](cacheOpts...),
	}

	c := &consoleAPI{logger: logger.Named("js")}
	c.register(vm)

	e.memo = mathrender.Memoize(e.renderString, request.key, e.cache)
	return e
}

// OnReady registers fn to run once a script has loaded. fn runs at once if
// the engine is already ready.
func (e *Engine) OnReady(fn func()) {
	e.readyMu.Lock()
	if !e.ready {
		e.onReady = append(e.onReady, fn)
		e.readyMu.Unlock()
		return
	}
	e.readyMu.Unlock()
	fn()
}

// LoadFile reads a script from disk and loads it.
func (e *Engine) LoadFile(path, entry string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return e.Load(path, string(data), entry)
}

// Load compiles and runs script, then resolves entry, a dotted path from the
// global object such as "katex.renderToString".
func (e *Engine) Load(name, script, entry string) error {
	prog, err := goja.Compile(name, script, false)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}

	e.mu.Lock()
	if _, err := e.vm.RunProgram(prog); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("run %s: %w", name, err)
	}
	fn, this, err := e.resolve(entry)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.render, e.this = fn, this
	e.mu.Unlock()

	e.logger.Info("typesetting script loaded", zap.String("script", name), zap.String("entry", entry))

	e.readyMu.Lock()
	e.ready = true
	callbacks := e.onReady
	e.onReady = nil
	e.readyMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

func (e *Engine) resolve(entry string) (goja.Callable, goja.Value, error) {
	parts := strings.Split(entry, ".")
	var this goja.Value = e.vm.GlobalObject()
	v := this

	for i, p := range parts {
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoEntry, strings.Join(parts[:i], "."))
		}
		this = v
		v = v.ToObject(e.vm).Get(p)
	}

	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoEntry, entry)
	}
	return fn, this, nil
}

func (e *Engine) Ready() bool {
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	return e.ready
}

// Typeset renders every element's source. Sources are expected in the form
// mathrender.Wrap produces; only that wrapper is removed. Nothing is written
// back unless the whole batch succeeds.
func (e *Engine) Typeset(ctx context.Context, elements []mathrender.Element) error {
	if !e.Ready() {
		return ErrNotLoaded
	}

	out := make([]string, len(elements))
	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return err
		}

		tex, inline := mathrender.Unwrap(el.Source())
		markup, err := e.memo(ctx, request{tex: tex, display: !inline})
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = markup
	}

	for i, el := range elements {
		el.SetMarkup(out[i])
	}
	return nil
}

// Clear drops markup so the elements can be typeset again.
func (e *Engine) Clear(elements []mathrender.Element) {
	for _, el := range elements {
		el.SetMarkup("")
	}
}

// RenderToString renders one formula. Delimiters are stripped first, so
// "$x$" and "x" produce the same markup.
func (e *Engine) RenderToString(ctx context.Context, formula string, display bool) (string, error) {
	return e.memo(ctx, request{tex: mathrender.Clean(formula), display: display})
}

// Cache exposes the memoized render results.
func (e *Engine) Cache() *mathrender.Cache[string] {
	return e.cache
}

// Close releases the memo cache's janitor.
func (e *Engine) Close() {
	e.cache.Stop()
}

func (e *Engine) renderString(ctx context.Context, r request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.render == nil {
		return "", ErrNotLoaded
	}

	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(ctx.Err())
	})
	defer func() {
		if !stop() {
			e.vm.ClearInterrupt()
		}
	}()

	opts := e.vm.NewObject()
	_ = opts.Set("displayMode", r.display)
	_ = opts.Set("throwOnError", true)

	v, err := e.render(e.this, e.vm.ToValue(r.tex), opts)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", ctx.Err()
		}
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return "", fmt.Errorf("render %q: %s", r.tex, exc.Value().String())
		}
		return "", fmt.Errorf("render %q: %w", r.tex, err)
	}
	return v.String(), nil
}
