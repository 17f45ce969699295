// Package mathrender orchestrates formula rendering against an external
// typesetting engine.
//
// Callers hand it elements and formula text. The orchestrator cleans and
// wraps the text, queues render tasks by priority, serves repeats from an
// in-memory cache, sends the rest to the engine in bounded batches with
// exponential-backoff retries, and can defer work until an element becomes
// visible.
//
//	o := mathrender.New(engine, mathrender.WithLogger(logger)) // engine implements Engine
//	defer o.Close()
//
//	el := mathrender.NewDetachedElement()
//	if err := o.Render(ctx, el, "$E = mc^2$"); err != nil {
//		// el is in StateError
//	}
//
// The engine is never probed by duck typing: it implements Engine, and the
// host raises SignalReady once it has loaded. Waiting for readiness gives up
// after the configured timeout and lets rendering proceed, so a missing
// engine surfaces as render errors rather than a hang.
package mathrender
