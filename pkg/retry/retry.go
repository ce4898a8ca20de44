// Package retry implements bounded exponential backoff for model requests.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMaxRetries is matched by the error returned once all attempts were rate limited.
var ErrMaxRetries = errors.New("exceeded maximum retries")

// Policy defines how a request is retried.
type Policy struct {
	MaxAttempts       int           // Total attempts, including the first
	InitialBackoff    time.Duration // Wait after the first failed attempt
	MaxBackoff        time.Duration // Zero means uncapped
	BackoffMultiplier float64
}

// DefaultPolicy waits 2s, 4s, 8s, 16s between five attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		InitialBackoff:    2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	backoff := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExhaustedError wraps the last failure once every attempt has been used.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s waiting for model capacity after %d attempts: %v", ErrMaxRetries, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrMaxRetries, e.Last}
}

// Retrier runs an operation under a Policy.
type Retrier struct {
	Policy    Policy
	Retryable func(error) bool // Nil retries every error
	Sleep     Sleeper          // Nil uses Sleep

	// OnRetry is called before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or
// exhausts the policy. No wait follows the final attempt.
func (r Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	maxAttempts := r.Policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := r.Policy.Backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt+1, wait, lastErr)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
