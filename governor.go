package admitgov

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/admitgov/admitgov/adaptive"
	"github.com/admitgov/admitgov/clock"
	"github.com/admitgov/admitgov/fairness"
	"github.com/admitgov/admitgov/limiter"
	"github.com/admitgov/admitgov/store"
)

// Governor is the facade composing the lease store, the three limiter
// pools, the fairness tracker, and the adaptive controller into a single
// admission-control authority.
//
// All state-mutating operations (Acquire, Release, and the reaper's
// periodic sweep) are serialized under a single mutex, as if the governor
// were a single-threaded cooperative authority: the rollback discipline in
// Acquire requires atomic composition of the limiters, which a per-pool
// lock could not guarantee.
type Governor struct {
	mu sync.Mutex

	store *store.Store

	concurrency *limiter.Concurrency
	requestRate *limiter.RequestRate
	tokenRate   *limiter.TokenRate
	fairness    *fairness.Tracker
	adaptiveCtl *adaptive.Controller

	fairnessEnabled bool
	adaptiveEnabled bool

	leaseTTLMs int64
	strict     bool
	onEvent    EventHandler
	clock      clock.Clock

	recent *recentReleased
	reaper *store.Reaper

	lastDeny lastDenyInfo
}

type lastDenyInfo struct {
	set     bool
	reason  DenyReason
	ts      int64
	actorID string
}

// New constructs a Governor from cfg. It returns an *InvalidConfigError if
// the configuration is internally inconsistent (currently: an interactive
// reserve that would consume the entire concurrency ceiling).
func New(cfg Config) (*Governor, error) {
	r := cfg.resolved()

	g := &Governor{
		store:      store.New(),
		leaseTTLMs: r.leaseTTLMs,
		strict:     r.strict,
		onEvent:    r.onEvent,
		clock:      r.clock,
		recent:     newRecentReleased(),
	}

	if r.concurrency != nil {
		c, err := limiter.NewConcurrency(r.concurrency.MaxInFlight, r.concurrency.InteractiveReserve)
		if err != nil {
			return nil, &InvalidConfigError{Reason: err.Error()}
		}
		g.concurrency = c

		if r.fairness != nil {
			g.fairness = fairness.New(r.fairness.SoftCapRatio, r.fairness.StarvationWindowMs)
			g.fairnessEnabled = true
		}
		if r.adaptive != nil {
			g.adaptiveCtl = adaptive.New(r.adaptive.Alpha, r.adaptive.TargetDenyRate, r.adaptive.LatencyThreshold, r.adaptive.AdjustIntervalMs, r.adaptive.MinConcurrency)
			g.adaptiveEnabled = true
		}
	}

	if r.rate != nil {
		if r.rate.RequestsPerMinute > 0 {
			g.requestRate = limiter.NewRequestRate(r.rate.WindowMs, r.rate.RequestsPerMinute)
		}
		if r.rate.TokensPerMinute > 0 {
			g.tokenRate = limiter.NewTokenRate(r.rate.WindowMs, r.rate.TokensPerMinute)
		}
	}

	g.reaper = store.NewReaper(time.Duration(r.reaperIntervalMs)*time.Millisecond, g.reapTick)
	g.reaper.Start()

	return g, nil
}

// Acquire decides whether to grant a lease for req. The check order is
// fixed: concurrency, fairness, request-rate, token-rate, then commit. Any
// failure after concurrency has been provisionally reserved rolls that
// reservation back before returning, so a denial from any later check
// costs nothing in earlier pools.
func (g *Governor) Acquire(req AcquireRequest) AcquireDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	priority := req.Priority
	if priority == "" {
		priority = Interactive
	}
	background := priority == Background

	weight := 1
	var promptTokens, maxOutputTokens int64
	if req.Estimate != nil {
		if req.Estimate.Weight > 0 {
			weight = req.Estimate.Weight
		}
		promptTokens = req.Estimate.PromptTokens
		maxOutputTokens = req.Estimate.MaxOutputTokens
	}
	estimatedTokens := promptTokens + maxOutputTokens

	now := g.clock()

	if g.adaptiveEnabled {
		newMax, _ := g.adaptiveCtl.MaybeAdjust(now, g.concurrency.EffectiveMax(), g.concurrency.MaxWeight())
		g.concurrency.SetEffectiveMax(newMax, g.adaptiveCtl.MinConcurrency())
	}

	if req.IdempotencyKey != "" {
		if existing, ok := g.store.GetByIdempotencyKey(req.IdempotencyKey); ok {
			return Granted{LeaseID: existing.ID, ExpiresAt: existing.ExpiresAt}
		}
	}

	if g.concurrency != nil {
		dec := g.concurrency.Admit(weight, background)
		if !dec.Admitted {
			earliest, hasEarliest := g.store.EarliestExpiry()
			retry := g.concurrency.RetryAfterMs(now, earliest, hasEarliest)
			g.recordDenialOutcome(now, req.ActorID)
			return g.deny(now, DenyConcurrency, retry, req, weight,
				"reduce concurrent calls or increase max_in_flight",
				LimitsHint{InFlight: intPtr(dec.InFlight), MaxInFlight: intPtr(dec.Max)})
		}
	}

	if g.fairnessEnabled {
		maxWeight := g.concurrency.MaxWeight()
		inFlight := g.concurrency.InFlightWeight()
		if !g.fairness.Admit(now, req.ActorID, weight, inFlight, maxWeight) {
			g.concurrency.Release(weight) // roll back the step-4 reservation
			g.recordDenialOutcome(now, req.ActorID)
			retry := g.concurrency.RetryAfterMs(now, 0, false)
			return g.deny(now, DenyPolicy, retry, req, weight,
				"actor is over its fair-share soft cap; retry shortly", LimitsHint{})
		}
	}

	if g.requestRate != nil {
		dec := g.requestRate.Admit(now)
		if !dec.Admitted {
			g.rollbackConcurrency(weight)
			g.recordDenialOutcome(now, req.ActorID)
			return g.deny(now, DenyRate, dec.RetryAfterMs, req, weight,
				"slow down request rate or increase requests_per_minute",
				LimitsHint{RateUsed: int64Ptr(dec.Used), RateLimit: int64Ptr(dec.Limit)})
		}
	}

	if g.tokenRate != nil {
		dec := g.tokenRate.Admit(now, estimatedTokens)
		if !dec.Admitted {
			g.rollbackConcurrency(weight)
			g.recordDenialOutcome(now, req.ActorID)
			return g.deny(now, DenyRate, dec.RetryAfterMs, req, weight,
				"reduce token usage or increase tokens_per_minute",
				LimitsHint{RateUsed: int64Ptr(dec.Used), RateLimit: int64Ptr(dec.Limit)})
		}
	}

	// Commit.
	if g.requestRate != nil {
		g.requestRate.Record(now)
	}
	leaseID := uuid.NewString()
	expiresAt := now + g.leaseTTLMs
	l := &store.Lease{
		ID:              leaseID,
		ActorID:         req.ActorID,
		Action:          req.Action,
		Priority:        priority,
		Weight:          weight,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		EstimatedTokens: estimatedTokens,
	}
	if g.tokenRate != nil && estimatedTokens > 0 {
		g.tokenRate.Record(now, estimatedTokens, leaseID)
	}
	g.store.Add(l)
	if g.fairnessEnabled {
		g.fairness.RecordAcquire(req.ActorID, weight)
	}
	if g.adaptiveEnabled {
		g.adaptiveCtl.RecordOutcome(false)
	}
	g.emitLocked(GovernorEvent{Type: EventAcquire, Timestamp: now, LeaseID: leaseID, ActorID: req.ActorID, Action: req.Action, Weight: weight})
	return Granted{LeaseID: leaseID, ExpiresAt: expiresAt}
}

// recordDenialOutcome feeds a deny into the fairness anti-starvation
// tracker and the adaptive controller's deny-rate EMA. Both are no-ops
// when their respective feature is disabled.
func (g *Governor) recordDenialOutcome(now int64, actorID string) {
	if g.fairnessEnabled {
		g.fairness.RecordDenial(now, actorID)
	}
	if g.adaptiveEnabled {
		g.adaptiveCtl.RecordOutcome(true)
	}
}

func (g *Governor) rollbackConcurrency(weight int) {
	if g.concurrency != nil {
		g.concurrency.Release(weight)
	}
}

func (g *Governor) deny(now int64, reason DenyReason, retry int64, req AcquireRequest, weight int, recommendation string, hint LimitsHint) Denied {
	g.lastDeny = lastDenyInfo{set: true, reason: reason, ts: now, actorID: req.ActorID}
	g.emitLocked(GovernorEvent{
		Type: EventDeny, Timestamp: now, ActorID: req.ActorID, Action: req.Action,
		Reason: reason, RetryAfterMs: retry, Recommendation: recommendation, Weight: weight,
	})
	return Denied{Reason: reason, RetryAfterMs: retry, Recommendation: recommendation, LimitsHint: hint}
}

// Release surrenders a lease. In non-strict mode (the default), releasing
// an unknown or already-released lease is a silent no-op so a caller's
// cleanup path can never itself panic. In strict mode those conditions
// become DoubleReleaseError / UnknownLeaseError.
func (g *Governor) Release(leaseID string, report *Report) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()

	if g.strict && g.recent.contains(leaseID) {
		return &DoubleReleaseError{LeaseID: leaseID}
	}

	l := g.store.Remove(leaseID)
	if l == nil {
		if g.strict {
			return &UnknownLeaseError{LeaseID: leaseID}
		}
		return nil
	}
	g.recent.add(leaseID)

	g.releaseBookkeepingLocked(l)

	outcome := OutcomeSuccess
	if report != nil {
		if report.Outcome != "" {
			outcome = report.Outcome
		}
		if report.Usage != nil && g.tokenRate != nil {
			g.tokenRate.Reconcile(leaseID, report.Usage.PromptTokens+report.Usage.OutputTokens)
		}
		if report.LatencyMs > 0 && g.adaptiveEnabled {
			g.adaptiveCtl.RecordLatency(report.LatencyMs)
		}
	}

	if g.strict {
		held := now - l.CreatedAt
		if g.leaseTTLMs > 0 && float64(held) > 0.8*float64(g.leaseTTLMs) {
			g.emitLocked(GovernorEvent{
				Type: EventWarn, Timestamp: now, LeaseID: leaseID,
				Message: "lease held for over 80% of its TTL; release sooner or increase lease_ttl_ms",
			})
		}
	}

	g.emitLocked(GovernorEvent{Type: EventRelease, Timestamp: now, LeaseID: leaseID, ActorID: l.ActorID, Action: l.Action, Weight: l.Weight, Outcome: outcome})
	return nil
}

// releaseBookkeepingLocked reverses a removed lease's concurrency and
// fairness accounting. Shared by explicit Release and the TTL reaper.
func (g *Governor) releaseBookkeepingLocked(l *store.Lease) {
	if g.concurrency != nil {
		g.concurrency.Release(l.Weight)
	}
	if g.fairnessEnabled {
		g.fairness.RecordRelease(l.ActorID, l.Weight)
	}
}

// reapTick is invoked by the Reaper's timer goroutine. It sweeps the store
// and reacts to every expired lease atomically, under the same lock Acquire
// and Release use.
func (g *Governor) reapTick() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	for _, l := range g.store.Sweep(now) {
		g.releaseBookkeepingLocked(l)
		g.emitLocked(GovernorEvent{Type: EventExpire, Timestamp: now, LeaseID: l.ID, ActorID: l.ActorID, Action: l.Action, Weight: l.Weight})
	}
}

// emitLocked invokes the configured event handler, if any. Any panic it
// raises is recovered and discarded so a faulty observer can never corrupt
// governor state or propagate into the caller.
func (g *Governor) emitLocked(ev GovernorEvent) {
	if g.onEvent == nil {
		return
	}
	defer func() { _ = recover() }()
	g.onEvent(ev)
}

// Dispose stops the TTL reaper. It is idempotent. Acquire and Release
// remain fully functional after Dispose; only automatic expiry halts.
func (g *Governor) Dispose() {
	g.reaper.Dispose()
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
