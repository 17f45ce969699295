package mathrender

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retried operation: MaxRetries+1 attempts in total,
// waiting BaseDelay*2^i after failed attempt i.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultRetryDelay,
	}
}

// Attempts is the total number of invocations the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// MaxRetryDelay caps a single backoff wait.
const MaxRetryDelay = 5 * time.Minute

// Delay is the wait after failed attempt i (zero-based), saturating at
// MaxRetryDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		return 0
	}
	for i := 0; i < attempt && d < MaxRetryDelay; i++ {
		d *= 2
	}
	return min(d, MaxRetryDelay)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs op until it succeeds or the policy is spent.
//
// Errors wrapping ErrInvalidFormula fail fast. Context cancellation stops the
// loop and returns the context error. A spent policy returns *ExhaustedError
// holding the last failure.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	return retry(ctx, p, sleepContext, nil, op)
}

func retry[T any](
	ctx context.Context,
	p RetryPolicy,
	sleep sleepFunc,
	onFailure func(attempt int, err error),
	op func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	attempts := p.Attempts()
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, p.Delay(i-1)); err != nil {
				return zero, err
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrInvalidFormula) {
			return zero, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		lastErr = err
		if onFailure != nil {
			onFailure(i, err)
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}
