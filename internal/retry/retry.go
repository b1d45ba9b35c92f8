// Package retry implements the single retry(policy, fn) helper spec.md §9
// calls for: exponential backoff with jitter, a max attempt count, and a
// per-kind eligibility predicate, reused by both the Forge Client (HTTP
// 429/5xx) and the Store (SQLite lock contention).
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/catherinevee/certguard/internal/metrics"
)

// Policy configures a retry loop.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	// Retryable decides whether err is worth another attempt. A nil
	// Retryable retries every non-nil, non-context-cancellation error.
	Retryable func(error) bool
	// Caller names the component issuing this policy's retries
	// ("forge", "store"), labeling certguard_retries_total.
	Caller string
}

// ForgeHTTPPolicy is the §4.1/§7 contract: 3 attempts, exponential backoff,
// retry only transient (429/5xx/network) failures.
func ForgeHTTPPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		Retryable:    IsTransient,
		Caller:       "forge",
	}
}

// StoreLockPolicy is the §4.2/§7 contract: 5 attempts, exponential backoff
// starting at 100ms, for SQLite "database is locked"/"busy" errors.
func StoreLockPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		Retryable:    IsLockContention,
		Caller:       "store",
	}
}

// ErrAuth marks a terminal authentication/authorization failure (401/403)
// that must never be retried, per spec.md §7.
var ErrAuth = errors.New("terminal authentication failure")

// TransientError wraps an error the caller has classified as retry-eligible
// (HTTP 429/5xx, connection reset, etc).
type TransientError struct{ Err error }

func (t *TransientError) Error() string { return t.Err.Error() }
func (t *TransientError) Unwrap() error { return t.Err }

// LockError wraps a Store lock-contention error ("database is locked").
type LockError struct{ Err error }

func (l *LockError) Error() string { return l.Err.Error() }
func (l *LockError) Unwrap() error { return l.Err }

// IsTransient reports whether err is retry-eligible under ForgeHTTPPolicy.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *TransientError
	if errors.As(err, &t) {
		return true
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrAuth)
}

// IsLockContention reports whether err is a Store busy/locked error.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	var l *LockError
	return errors.As(err, &l)
}

// Do executes fn under policy, retrying eligible failures with exponential
// backoff and jitter. It returns the last error if attempts are exhausted,
// or immediately on a non-retryable error or context cancellation.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt >= policy.MaxAttempts {
			break
		}
		if policy.Caller != "" {
			metrics.Default.RecordRetry(policy.Caller)
		}

		delay := backoffDelay(policy, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func backoffDelay(policy Policy, attempt int) time.Duration {
	d := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt-1))
	if max := float64(policy.MaxDelay); d > max {
		d = max
	}
	if policy.Jitter {
		d = d * (0.5 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}
