package flow

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries a failing handler with exponential backoff before
// the engine gives up and converts the failure into an error message.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 behave as 1.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; each further wait
	// doubles, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration

	// Retryable filters which errors are worth retrying. Nil retries
	// everything except context cancellation.
	Retryable func(error) bool
}

// NodePolicy bundles the per-node execution limits a handler can carry.
type NodePolicy struct {
	Timeout time.Duration
	Retry   *RetryPolicy
}

// PolicyProvider is an optional interface for handlers that override the
// engine-level timeout and retry defaults.
type PolicyProvider interface {
	Policy() NodePolicy
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// invokeWithPolicy runs a handler under the effective timeout and retry
// policy. The returned error is the last attempt's error.
func invokeWithPolicy(ctx context.Context, h Handler, s State, pol NodePolicy) (Delta, error) {
	attempts := 1
	if pol.Retry != nil && pol.Retry.MaxAttempts > 1 {
		attempts = pol.Retry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := pol.Retry.delay(attempt - 1)
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return Delta{}, ctx.Err()
				}
			}
		}

		runCtx := ctx
		var cancel context.CancelFunc
		if pol.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, pol.Timeout)
		}
		delta, err := h.Run(runCtx, s)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return delta, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Delta{}, lastErr
		}
		if pol.Retry == nil || !pol.Retry.shouldRetry(err) {
			return Delta{}, lastErr
		}
	}
	return Delta{}, lastErr
}
