package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3

	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 5 * time.Second

	// DefaultBackoffBase is the delay before the first retry.
	DefaultBackoffBase = 300 * time.Millisecond
)

// BackoffFunc returns the delay before attempt i (0-indexed, i >= 1).
type BackoffFunc func(attempt int) time.Duration

// RetryPredicate reports whether a failed attempt may be retried.
type RetryPredicate func(err error) bool

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes bounded retry behavior for one logical request.
type Policy struct {
	// Retries is the number of retries after the first attempt, so a call
	// makes at most Retries+1 attempts. Negative values mean no retries.
	Retries int

	// Timeout bounds each individual attempt. Zero disables the per-attempt
	// deadline.
	Timeout time.Duration

	// Retryable decides retry-vs-abort for a failed attempt.
	Retryable RetryPredicate

	// Backoff computes the wait inserted before a retry.
	Backoff BackoffFunc

	// Sleep performs the wait. Tests replace it to avoid real delays.
	Sleep SleepFunc
}

// DefaultPolicy returns the policy used when a provider does not override it.
func DefaultPolicy() Policy {
	return Policy{
		Retries:   DefaultRetries,
		Timeout:   DefaultTimeout,
		Retryable: DefaultRetryable,
		Backoff:   DefaultBackoff,
		Sleep:     sleepContext,
	}
}

// DefaultBackoff is 300ms * 2^(attempt-1): 300ms, 600ms, 1.2s, ...
func DefaultBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := DefaultBackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// NoBackoff never waits between attempts.
func NoBackoff(int) time.Duration { return 0 }

// DefaultRetryable retries network failures (no status), 5xx and 429.
// Any other 4xx aborts immediately, as does caller cancellation.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	status := StatusOf(err)
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// withDefaults fills zero-valued function fields.
func (p Policy) withDefaults() Policy {
	if p.Retryable == nil {
		p.Retryable = DefaultRetryable
	}
	if p.Backoff == nil {
		p.Backoff = DefaultBackoff
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	return p
}

// Do runs fn until it succeeds, a non-retryable error occurs, or the retry
// budget is spent. It returns the number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	p = p.withDefaults()

	var lastErr error
	attempts := 0
	for i := 0; i <= p.Retries; i++ {
		if i > 0 {
			if err := p.Sleep(ctx, p.Backoff(i)); err != nil {
				// canceled during backoff
				return attempts, lastErr
			}
		}

		attempts++
		lastErr = p.attempt(ctx, fn)
		if lastErr == nil {
			return attempts, nil
		}
		if !p.Retryable(lastErr) {
			break
		}
	}
	return attempts, lastErr
}

// WorstCase is the longest a call can take when every attempt runs to its
// timeout. It is zero when attempts are unbounded.
func (p Policy) WorstCase() time.Duration {
	p = p.withDefaults()
	if p.Timeout <= 0 {
		return 0
	}

	total := time.Duration(p.Retries+1) * p.Timeout
	for i := 1; i <= p.Retries; i++ {
		total += p.Backoff(i)
	}
	return total
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

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
