// Package admitgov provides an in-process admission-control governor for
// high-cost outbound calls (typically AI model APIs). Callers obtain a
// short-lived lease before performing the external work and surrender it
// afterward; the governor decides whether to grant a lease based on
// weighted concurrency, request-rate, and token-rate limiters, augmented by
// optional per-actor fairness and a self-tuning adaptive controller.
//
// # Key Concepts
//
//   - [Lease] is the permit returned by a granted [Governor.Acquire] and
//     surrendered by [Governor.Release].
//   - [Config] describes which limiters are active and their thresholds;
//     concurrency, rate, fairness, and adaptive tuning are all optional.
//   - [AcquireDecision] is a tagged sum over granted/denied outcomes;
//     denials are first-class values, never errors.
//   - [GovernorEvent] is a tagged sum over acquire/deny/release/expire/warn,
//     delivered synchronously to an optional on_event callback.
//
// # Quick Start
//
//	g, err := admitgov.New(admitgov.Config{
//		Concurrency: &admitgov.ConcurrencyConfig{MaxInFlight: 10},
//		Rate:        &admitgov.RateConfig{TokensPerMinute: 100000},
//	})
//	if err != nil {
//		panic(err)
//	}
//	defer g.Dispose()
//
//	decision := g.Acquire(admitgov.AcquireRequest{
//		ActorID:  "user-42",
//		Action:   "chat-completion",
//		Estimate: &admitgov.Estimate{PromptTokens: 500, MaxOutputTokens: 300},
//	})
//	if granted, ok := decision.(admitgov.Granted); ok {
//		defer g.Release(granted.LeaseID, nil)
//		// ... perform the outbound call ...
//	}
//
// See the [Governor] documentation for the full API.
package admitgov
