package limiter

import (
	"fmt"
	"math"
)

// Concurrency is a weighted capacity pool with an interactive-reserve
// carve-out and an adaptive effective ceiling.
type Concurrency struct {
	maxWeight          int
	effectiveMax       int
	interactiveReserve int
	inFlightWeight     int
}

// NewConcurrency constructs a pool. It rejects configurations where the
// interactive reserve would consume the entire (or more than the) hard
// ceiling.
func NewConcurrency(maxWeight, interactiveReserve int) (*Concurrency, error) {
	if interactiveReserve >= maxWeight {
		return nil, fmt.Errorf("limiter: interactive_reserve (%d) must be less than max_in_flight (%d)", interactiveReserve, maxWeight)
	}
	return &Concurrency{
		maxWeight:          maxWeight,
		effectiveMax:       maxWeight,
		interactiveReserve: interactiveReserve,
	}, nil
}

// Decision reports the outcome of an admission attempt and the pool state
// at the time it was made, for use in limits_hint.
type Decision struct {
	Admitted bool
	InFlight int
	Max      int
}

// Admit applies the two-step admission rule: capacity must be available for
// the full weight, and background requests may never dip into the
// interactive reserve. A granted Admit reserves the weight immediately.
func (c *Concurrency) Admit(weight int, background bool) Decision {
	available := c.effectiveMax - c.inFlightWeight
	if available < weight {
		return Decision{Admitted: false, InFlight: c.inFlightWeight, Max: c.effectiveMax}
	}
	if background && available-weight < c.interactiveReserve {
		return Decision{Admitted: false, InFlight: c.inFlightWeight, Max: c.effectiveMax}
	}
	c.inFlightWeight += weight
	return Decision{Admitted: true, InFlight: c.inFlightWeight, Max: c.effectiveMax}
}

// Release returns weight to the pool. Over-release clamps at zero rather
// than going negative.
func (c *Concurrency) Release(weight int) {
	c.inFlightWeight -= weight
	if c.inFlightWeight < 0 {
		c.inFlightWeight = 0
	}
}

func (c *Concurrency) InFlightWeight() int { return c.inFlightWeight }
func (c *Concurrency) EffectiveMax() int   { return c.effectiveMax }
func (c *Concurrency) MaxWeight() int      { return c.maxWeight }

// SetEffectiveMax moves the adaptive ceiling, clamped to
// [minConcurrency, maxWeight].
func (c *Concurrency) SetEffectiveMax(v, minConcurrency int) {
	if v < minConcurrency {
		v = minConcurrency
	}
	if v > c.maxWeight {
		v = c.maxWeight
	}
	c.effectiveMax = v
}

// RetryAfterMs computes the denial retry hint: prefer ms until the
// earliest active lease expires; fall back to a pressure-based heuristic
// when that is unavailable or non-positive. Always clamped to [25, 5000]ms.
func (c *Concurrency) RetryAfterMs(now, earliestExpiry int64, hasEarliest bool) int64 {
	if hasEarliest {
		if d := earliestExpiry - now; d > 0 {
			return clampRetry(d)
		}
	}
	pressure := float64(c.inFlightWeight) / float64(c.effectiveMax)
	heuristic := int64(math.Round(250 + pressure*750))
	return clampRetry(heuristic)
}

func clampRetry(ms int64) int64 {
	if ms < 25 {
		return 25
	}
	if ms > 5000 {
		return 5000
	}
	return ms
}
