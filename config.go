package admitgov

import "github.com/admitgov/admitgov/clock"

// ConcurrencyConfig enables the weighted concurrency pool.
type ConcurrencyConfig struct {
	// MaxInFlight is the hard weight ceiling.
	MaxInFlight int
	// InteractiveReserve is weight units background-priority requests
	// may never consume. Defaults to 0.
	InteractiveReserve int
}

// RateConfig enables the request-rate and/or token-rate pools. Either
// threshold may be left at zero to leave that pool disabled.
type RateConfig struct {
	RequestsPerMinute int64
	TokensPerMinute   int64
	// WindowMs defaults to 60_000.
	WindowMs int64
}

// FairnessConfig enables the fairness tracker. It is ignored if Concurrency
// is nil.
type FairnessConfig struct {
	// SoftCapRatio defaults to 0.6.
	SoftCapRatio float64
	// StarvationWindowMs defaults to 5000.
	StarvationWindowMs int64
}

// AdaptiveConfig enables the adaptive controller. It is ignored if
// Concurrency is nil.
type AdaptiveConfig struct {
	// Alpha defaults to 0.2.
	Alpha float64
	// TargetDenyRate defaults to 0.05.
	TargetDenyRate float64
	// LatencyThreshold defaults to 1.5.
	LatencyThreshold float64
	// AdjustIntervalMs defaults to 5000.
	AdjustIntervalMs int64
	// MinConcurrency defaults to 1.
	MinConcurrency int
}

// Config is the single record consumed at Governor construction.
type Config struct {
	Concurrency *ConcurrencyConfig
	Rate        *RateConfig
	Fairness    *FairnessConfig
	Adaptive    *AdaptiveConfig

	// LeaseTTLMs defaults to 60_000.
	LeaseTTLMs int64
	// ReaperIntervalMs defaults to 5_000.
	ReaperIntervalMs int64
	// Strict enables hard errors for lifecycle misuse (DoubleRelease,
	// UnknownLease) instead of silently tolerating them.
	Strict bool
	// OnEvent, if set, is invoked synchronously for every emitted event.
	// Any panic it raises is recovered and discarded.
	OnEvent EventHandler
	// Clock overrides the monotonic clock; defaults to clock.Real().
	Clock clock.Clock
}

func (c *Config) resolved() resolvedConfig {
	r := resolvedConfig{
		leaseTTLMs:       orDefault(c.LeaseTTLMs, 60_000),
		reaperIntervalMs: orDefault(c.ReaperIntervalMs, 5_000),
		strict:           c.Strict,
		onEvent:          c.OnEvent,
		clock:            c.Clock,
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}

	if c.Concurrency != nil {
		r.concurrency = &ConcurrencyConfig{
			MaxInFlight:        c.Concurrency.MaxInFlight,
			InteractiveReserve: c.Concurrency.InteractiveReserve,
		}
	}

	if c.Rate != nil {
		r.rate = &RateConfig{
			RequestsPerMinute: c.Rate.RequestsPerMinute,
			TokensPerMinute:   c.Rate.TokensPerMinute,
			WindowMs:          orDefault(c.Rate.WindowMs, 60_000),
		}
	}

	if c.Concurrency != nil && c.Fairness != nil {
		r.fairness = &FairnessConfig{
			SoftCapRatio:       orDefaultF(c.Fairness.SoftCapRatio, 0.6),
			StarvationWindowMs: orDefault(c.Fairness.StarvationWindowMs, 5000),
		}
	}

	if c.Concurrency != nil && c.Adaptive != nil {
		r.adaptive = &AdaptiveConfig{
			Alpha:            orDefaultF(c.Adaptive.Alpha, 0.2),
			TargetDenyRate:   orDefaultF(c.Adaptive.TargetDenyRate, 0.05),
			LatencyThreshold: orDefaultF(c.Adaptive.LatencyThreshold, 1.5),
			AdjustIntervalMs: orDefault(c.Adaptive.AdjustIntervalMs, 5000),
			MinConcurrency:   orDefaultInt(c.Adaptive.MinConcurrency, 1),
		}
	}

	return r
}

type resolvedConfig struct {
	concurrency      *ConcurrencyConfig
	rate             *RateConfig
	fairness         *FairnessConfig
	adaptive         *AdaptiveConfig
	leaseTTLMs       int64
	reaperIntervalMs int64
	strict           bool
	onEvent          EventHandler
	clock            clock.Clock
}

func orDefault(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
