// Package lease provides ergonomic wrappers around admitgov.Governor:
// WithLease for acquire-run-release in one call, and RetryAcquire for
// backing off across denials instead of handling them by hand.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/admitgov/admitgov"
)

// DeniedError wraps a denial returned by the governor so callers can
// recover the DenyReason and retry hint with errors.As.
type DeniedError struct {
	Denied admitgov.Denied
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("admitgov: acquire denied: %s (retry after %dms): %s",
		e.Denied.Reason, e.Denied.RetryAfterMs, e.Denied.Recommendation)
}

// WithLease acquires a lease for req, runs fn on grant, and always releases
// the lease with a Report built from fn's returned usage, error, and
// measured latency. On denial it runs nothing and returns a *DeniedError.
func WithLease(ctx context.Context, g *admitgov.Governor, req admitgov.AcquireRequest, fn func(context.Context, admitgov.Lease) (admitgov.Usage, error)) error {
	decision := g.Acquire(req)
	denied, isDenied := decision.(admitgov.Denied)
	if isDenied {
		return &DeniedError{Denied: denied}
	}
	granted := decision.(admitgov.Granted)

	start := time.Now()
	usage, fnErr := fn(ctx, admitgov.Lease{ID: granted.LeaseID, ExpiresAt: granted.ExpiresAt})
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	outcome := admitgov.OutcomeSuccess
	switch {
	case fnErr != nil && ctx.Err() == context.Canceled:
		outcome = admitgov.OutcomeCancelled
	case fnErr != nil && ctx.Err() == context.DeadlineExceeded:
		outcome = admitgov.OutcomeTimeout
	case fnErr != nil:
		outcome = admitgov.OutcomeError
	}

	_ = g.Release(granted.LeaseID, &admitgov.Report{
		Outcome:   outcome,
		Usage:     &usage,
		LatencyMs: latencyMs,
	})

	return fnErr
}

// RetryPolicy bounds RetryAcquire's backoff with MaxAttempts and MaxWait.
// It has no backoff-strategy field: the sleep between attempts is always
// the governor's own retry hint, capped at MaxWait.
type RetryPolicy struct {
	// MaxAttempts defaults to 5.
	MaxAttempts uint
	// MaxWait caps any single sleep between attempts. Defaults to 30s.
	MaxWait time.Duration
}

// RetryAcquire calls Acquire repeatedly, sleeping the governor's own
// retry_after_ms hint (clamped to policy.MaxWait) between denials, until a
// lease is granted, the context is done, or policy.MaxAttempts is
// exhausted.
func RetryAcquire(ctx context.Context, g *admitgov.Governor, req admitgov.AcquireRequest, policy RetryPolicy) (admitgov.Lease, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	maxWait := policy.MaxWait
	if maxWait == 0 {
		maxWait = 30 * time.Second
	}

	var result admitgov.Lease
	var lastDenyWait time.Duration

	err := retry.Do(
		func() error {
			decision := g.Acquire(req)
			if granted, ok := decision.(admitgov.Granted); ok {
				result = admitgov.Lease{ID: granted.LeaseID, ExpiresAt: granted.ExpiresAt}
				return nil
			}
			denied := decision.(admitgov.Denied)
			lastDenyWait = time.Duration(denied.RetryAfterMs) * time.Millisecond
			if lastDenyWait > maxWait {
				lastDenyWait = maxWait
			}
			return &DeniedError{Denied: denied}
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return lastDenyWait
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return admitgov.Lease{}, err
	}
	return result, nil
}
