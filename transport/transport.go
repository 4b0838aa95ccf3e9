// Package transport adapts an admitgov.Governor into an http.RoundTripper,
// so an *http.Client can acquire a lease before every outbound call and
// release it once the response (or error) is known.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/admitgov/admitgov"
)

// ErrAdmissionDenied is returned by RoundTrip when the governor denies the
// request and no DenyHandler is configured. It wraps the governor's denial
// so callers can inspect Reason and RetryAfterMs with errors.As.
type ErrAdmissionDenied struct {
	Denied admitgov.Denied
}

func (e *ErrAdmissionDenied) Error() string {
	return fmt.Sprintf("admitgov: request denied: %s (retry after %dms): %s",
		e.Denied.Reason, e.Denied.RetryAfterMs, e.Denied.Recommendation)
}

// DenyHandler lets a caller substitute its own response (e.g. a synthetic
// 429) instead of propagating ErrAdmissionDenied.
type DenyHandler func(req *http.Request, denied admitgov.Denied) (*http.Response, error)

// Transport is an http.RoundTripper that gates outbound requests through an
// admitgov.Governor.
type Transport struct {
	governor *admitgov.Governor
	classify Classifier
	base     http.RoundTripper
	logger   *zap.Logger
	onDeny   DenyHandler
}

// Option configures a Transport.
type Option func(*Transport)

// WithBaseTransport sets the RoundTripper requests are forwarded to once
// admitted. Defaults to http.DefaultTransport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithLogger sets the zap.Logger used to record denials and release
// outcomes. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithDenyHandler sets a DenyHandler invoked in place of returning
// ErrAdmissionDenied from RoundTrip.
func WithDenyHandler(fn DenyHandler) Option {
	return func(t *Transport) { t.onDeny = fn }
}

// New builds a Transport. classify turns each outbound *http.Request into
// the AcquireRequest the governor evaluates; use BuildClassifier for a
// pattern-rule-based one.
func New(g *admitgov.Governor, classify Classifier, opts ...Option) *Transport {
	t := &Transport{
		governor: g,
		classify: classify,
		base:     http.DefaultTransport,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip acquires a lease, forwards the request on success, and releases
// the lease with a Report reflecting the outcome and latency.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	acqReq := t.classify(req)

	decision := t.governor.Acquire(acqReq)
	denied, isDenied := decision.(admitgov.Denied)
	if isDenied {
		t.logger.Warn("admitgov: request denied",
			zap.String("actor_id", acqReq.ActorID),
			zap.String("action", acqReq.Action),
			zap.String("reason", string(denied.Reason)),
			zap.Int64("retry_after_ms", denied.RetryAfterMs),
		)
		if t.onDeny != nil {
			return t.onDeny(req, denied)
		}
		return nil, &ErrAdmissionDenied{Denied: denied}
	}

	granted := decision.(admitgov.Granted)
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	report := &admitgov.Report{LatencyMs: latencyMs, Outcome: admitgov.OutcomeSuccess}
	switch {
	case err != nil:
		report.Outcome = admitgov.OutcomeError
		if errors.Is(err, http.ErrHandlerTimeout) {
			report.Outcome = admitgov.OutcomeTimeout
		}
	case resp.StatusCode >= 500:
		report.Outcome = admitgov.OutcomeError
	}

	if relErr := t.governor.Release(granted.LeaseID, report); relErr != nil {
		t.logger.Error("admitgov: release failed",
			zap.String("lease_id", granted.LeaseID), zap.Error(relErr))
	}

	return resp, err
}
