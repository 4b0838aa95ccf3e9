// Package breaker composes admitgov lease acquisition with a circuit
// breaker, so a provider that is failing fast does not also keep the
// concurrency pool saturated with calls that are doomed before they start.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/admitgov/admitgov"
)

// DeniedError wraps a denial returned by the governor so callers can
// recover the DenyReason and retry hint with errors.As. fn is never
// invoked when Execute returns this error.
type DeniedError struct {
	Denied admitgov.Denied
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("admitgov: acquire denied: %s (retry after %dms): %s",
		e.Denied.Reason, e.Denied.RetryAfterMs, e.Denied.Recommendation)
}

// Settings configures the underlying gobreaker.CircuitBreaker. It mirrors
// the subset of gobreaker.Settings that a provider-call wrapper typically
// needs; Name identifies the breaker in state-change callbacks.
type Settings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ReadyToTrip defaults to gobreaker's own default (trip after more than
	// five consecutive failures) when nil.
	ReadyToTrip func(counts gobreaker.Counts) bool
	// OnStateChange is invoked whenever the breaker transitions state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// Guarded wraps an admitgov.Governor and a gobreaker.CircuitBreaker so a
// single Execute call acquires a lease, runs the operation through the
// breaker, and releases the lease with an outcome that reflects whichever
// of the two rejected the call.
type Guarded struct {
	governor *admitgov.Governor
	cb       *gobreaker.CircuitBreaker[admitgov.Usage]
}

// New builds a Guarded wrapping g with a circuit breaker configured by
// settings.
func New(g *admitgov.Governor, settings Settings) *Guarded {
	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
	}
	if settings.ReadyToTrip != nil {
		st.ReadyToTrip = settings.ReadyToTrip
	}
	if settings.OnStateChange != nil {
		st.OnStateChange = settings.OnStateChange
	}
	return &Guarded{
		governor: g,
		cb:       gobreaker.NewCircuitBreaker[admitgov.Usage](st),
	}
}

// Execute acquires a lease for req. If granted, fn runs through the
// circuit breaker; the lease is always released with a Report reflecting
// the combined outcome and measured latency. If the breaker is open or at
// its half-open request cap, fn is never called and the lease is released
// with OutcomeError — a tripped breaker must not itself pin capacity.
func (gd *Guarded) Execute(ctx context.Context, req admitgov.AcquireRequest, fn func(context.Context) (admitgov.Usage, error)) (admitgov.Usage, error) {
	decision := gd.governor.Acquire(req)
	if denied, ok := decision.(admitgov.Denied); ok {
		return admitgov.Usage{}, &DeniedError{Denied: denied}
	}
	granted := decision.(admitgov.Granted)

	start := time.Now()
	usage, err := gd.cb.Execute(func() (admitgov.Usage, error) {
		return fn(ctx)
	})
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	outcome := admitgov.OutcomeSuccess
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = admitgov.OutcomeError
	case err != nil && ctx.Err() == context.DeadlineExceeded:
		outcome = admitgov.OutcomeTimeout
	case err != nil && ctx.Err() == context.Canceled:
		outcome = admitgov.OutcomeCancelled
	case err != nil:
		outcome = admitgov.OutcomeError
	}

	_ = gd.governor.Release(granted.LeaseID, &admitgov.Report{
		Outcome:   outcome,
		Usage:     &usage,
		LatencyMs: latencyMs,
	})

	return usage, err
}

// State returns the breaker's current state (closed, half-open, open).
func (gd *Guarded) State() gobreaker.State { return gd.cb.State() }

// Counts returns the breaker's current request/failure counters.
func (gd *Guarded) Counts() gobreaker.Counts { return gd.cb.Counts() }
