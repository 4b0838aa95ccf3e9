package admitgov

import "github.com/admitgov/admitgov/store"

// Lease is an issued permission to perform one unit of outbound work. The
// type is owned by the store package (a leaf with no dependency on this
// package) and aliased here for ergonomic public use, the same way the
// store package itself mirrors types instead of importing its caller.
type Lease = store.Lease

// Priority is the scheduling class a lease was requested under.
type Priority = store.Priority

const (
	// Interactive leases may consume the concurrency pool's interactive
	// reserve; they represent user-facing, latency-sensitive work. It is
	// the default when a request does not specify a priority.
	Interactive = store.Interactive
	// Background leases are never allowed to dip into the interactive
	// reserve.
	Background = store.Background
)

// Estimate is the caller's up-front guess at the cost of the work it is
// about to perform.
type Estimate struct {
	// Weight is the number of concurrency units this lease consumes.
	// Zero means "unspecified"; the facade defaults it to 1.
	Weight int
	// PromptTokens and MaxOutputTokens sum to the lease's
	// EstimatedTokens, charged against the token-rate pool at
	// acquisition.
	PromptTokens    int64
	MaxOutputTokens int64
}

// AcquireRequest is the input to Governor.Acquire.
type AcquireRequest struct {
	// ActorID is the fairness principal. Required.
	ActorID string
	// Action is an informational label for the call being made. Required.
	Action string
	// Priority defaults to Interactive when unset.
	Priority Priority
	// Estimate describes the lease's weight and token cost. A nil
	// Estimate is equivalent to Weight:1 with no token charge.
	Estimate *Estimate
	// IdempotencyKey, if set and currently held by a live lease, causes
	// Acquire to re-hand that lease instead of consuming a new slot.
	IdempotencyKey string
}

// Outcome classifies how the caller's work turned out, reported at
// release time.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeError     Outcome = "error"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

// Usage is the caller's actual token consumption, used to reconcile the
// token-rate charge made at acquisition time.
type Usage struct {
	PromptTokens int64
	OutputTokens int64
}

// Report is the optional input to Governor.Release describing how the
// leased work went.
type Report struct {
	Outcome   Outcome
	Usage     *Usage
	LatencyMs float64
}
