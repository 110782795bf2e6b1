// Package retry wraps calls to external collaborators with a shared
// exponential backoff policy and a per-attempt timeout.
//
// Only errors for which domain.IsTransient returns true are retried.
// Everything else is returned after the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// Policy bounds how often and how long a call is retried.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	// InitialInterval is the wait after the first failure.
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration

	// AttemptTimeout bounds each call. Zero means no per-call deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// FromSettings builds a policy from configuration.
func FromSettings(s domain.RetrySettings, attemptTimeout time.Duration) Policy {
	p := DefaultPolicy()
	if s.MaxAttempts > 0 {
		p.MaxAttempts = s.MaxAttempts
	}
	if s.InitialInterval > 0 {
		p.InitialInterval = s.InitialInterval
	}
	if s.MaxInterval > 0 {
		p.MaxInterval = s.MaxInterval
	}
	p.AttemptTimeout = attemptTimeout
	return p
}

// WithTimeout returns a copy of p with a different per-attempt timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// Do calls fn until it succeeds, fails permanently or the attempt budget
// is spent. It returns the number of calls made and the last error.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	attempts := 0
	var last error
	err := backoff.RetryNotify(func() error {
		attempts++
		callCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}

		last = fn(callCtx)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil || !domain.IsTransient(last) {
			return backoff.Permanent(last)
		}
		return last
	}, b, func(err error, wait time.Duration) {
		logger.Warn("%s attempt %d/%d failed, retrying in %s: %v", op, attempts, maxAttempts, wait.Round(time.Millisecond), err)
	})

	if err != nil && last != nil {
		// Prefer the call's own error over a context error from the backoff loop.
		return attempts, last
	}
	return attempts, err
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var out T
	attempts, err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, attempts, err
}
