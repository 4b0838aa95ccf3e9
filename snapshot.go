package admitgov

// Snapshot is a read-only point-in-time view of governor state.
type Snapshot struct {
	Timestamp    int64
	ActiveLeases int
	Concurrency  *ConcurrencySnapshot
	RequestRate  *RateSnapshot
	TokenRate    *RateSnapshot
	Fairness     bool
	Adaptive     bool
	LastDeny     *LastDeny
}

// ConcurrencySnapshot reports the concurrency pool's current state.
type ConcurrencySnapshot struct {
	InFlightWeight int
	InFlightCount  int
	Available      int
	Max            int
	EffectiveMax   int
}

// RateSnapshot reports a rolling-window pool's current usage and cap.
type RateSnapshot struct {
	Current int64
	Limit   int64
}

// LastDeny reports the most recent denial, if any have occurred.
type LastDeny struct {
	Reason    DenyReason
	Timestamp int64
	ActorID   string
}

// Snapshot returns a read-only view of current governor state.
func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	s := Snapshot{
		Timestamp:    now,
		ActiveLeases: g.store.Len(),
		Fairness:     g.fairnessEnabled,
		Adaptive:     g.adaptiveEnabled,
	}

	if g.concurrency != nil {
		s.Concurrency = &ConcurrencySnapshot{
			InFlightWeight: g.concurrency.InFlightWeight(),
			InFlightCount:  g.store.Len(),
			Available:      g.concurrency.EffectiveMax() - g.concurrency.InFlightWeight(),
			Max:            g.concurrency.MaxWeight(),
			EffectiveMax:   g.concurrency.EffectiveMax(),
		}
	}
	if g.requestRate != nil {
		s.RequestRate = &RateSnapshot{Current: g.requestRate.Used(now), Limit: g.requestRate.Limit()}
	}
	if g.tokenRate != nil {
		s.TokenRate = &RateSnapshot{Current: g.tokenRate.Used(now), Limit: g.tokenRate.Limit()}
	}
	if g.lastDeny.set {
		s.LastDeny = &LastDeny{Reason: g.lastDeny.reason, Timestamp: g.lastDeny.ts, ActorID: g.lastDeny.actorID}
	}

	return s
}
