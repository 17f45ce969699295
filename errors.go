package mathrender

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineLoadTimeout: the engine never signaled readiness in time.
	// Only returned under WithStrictReadiness; otherwise it is logged.
	ErrEngineLoadTimeout = errors.New("mathrender: engine load timed out")

	// ErrInvalidFormula: empty or structurally malformed formula text.
	// Never retried.
	ErrInvalidFormula = errors.New("mathrender: invalid formula")

	// ErrEngineRender: one engine typeset call failed.
	ErrEngineRender = errors.New("mathrender: engine render failed")

	// ErrRenderExhausted: every retry of a batch failed.
	ErrRenderExhausted = errors.New("mathrender: render retries exhausted")

	// ErrClosed: the orchestrator was closed before the task ran.
	ErrClosed = errors.New("mathrender: orchestrator closed")

	// ErrReset: the orchestrator was reset before the task ran.
	ErrReset = errors.New("mathrender: orchestrator reset")
)

// ExhaustedError carries the last failure of a retried operation.
// It matches both ErrRenderExhausted and Err under errors.Is.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("mathrender: render retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRenderExhausted, e.Err}
}

func engineError(err error) error {
	return fmt.Errorf("%w: %w", ErrEngineRender, err)
}
