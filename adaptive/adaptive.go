// Package adaptive implements the EMA-based feedback loop that adjusts the
// concurrency pool's effective ceiling in response to observed deny rate
// and completion latency.
package adaptive

// Controller keeps exponential moving averages of per-interval deny rate
// and completion latency, plus a baseline latency captured from the first
// interval that saw any latency samples.
type Controller struct {
	alpha            float64
	targetDenyRate   float64
	latencyThreshold float64
	adjustIntervalMs int64
	minConcurrency   int

	emaDenyRate float64
	emaLatency  float64
	baseline    float64
	hasBaseline bool

	lastTick  int64
	hasTicked bool

	denyCount  int
	totalCount int
	latencySum float64
	latencyN   int
}

// New constructs a Controller from its resolved configuration (defaults
// are applied at the Config layer, not here).
func New(alpha, targetDenyRate, latencyThreshold float64, adjustIntervalMs int64, minConcurrency int) *Controller {
	return &Controller{
		alpha:            alpha,
		targetDenyRate:   targetDenyRate,
		latencyThreshold: latencyThreshold,
		adjustIntervalMs: adjustIntervalMs,
		minConcurrency:   minConcurrency,
	}
}

// RecordOutcome tallies one acquire attempt toward the next tick's deny
// rate. Denials count even when they came from a limiter downstream of
// concurrency, since the controller reacts to overall pressure, not just
// concurrency-specific denials.
func (c *Controller) RecordOutcome(denied bool) {
	c.totalCount++
	if denied {
		c.denyCount++
	}
}

// RecordLatency tallies one release's latency sample toward the next
// tick's latency EMA.
func (c *Controller) RecordLatency(ms float64) {
	c.latencySum += ms
	c.latencyN++
}

// MinConcurrency returns the configured floor for the effective ceiling.
func (c *Controller) MinConcurrency() int { return c.minConcurrency }

// MaybeAdjust runs at most once per adjust_interval_ms. When the interval
// has not yet elapsed it returns effectiveMax unchanged. Otherwise it
// updates both EMAs from the samples accumulated since the last tick,
// decides on at most a one-unit move, and resets the interval counters.
func (c *Controller) MaybeAdjust(now int64, effectiveMax, maxWeight int) (newEffectiveMax int, adjusted bool) {
	if c.hasTicked && now-c.lastTick < c.adjustIntervalMs {
		return effectiveMax, false
	}
	c.lastTick = now
	c.hasTicked = true

	var denyRate float64
	if c.totalCount > 0 {
		denyRate = float64(c.denyCount) / float64(c.totalCount)
	}
	c.emaDenyRate = ema(c.emaDenyRate, denyRate, c.alpha)

	if c.latencyN > 0 {
		avgLatency := c.latencySum / float64(c.latencyN)
		c.emaLatency = ema(c.emaLatency, avgLatency, c.alpha)
		if !c.hasBaseline {
			c.baseline = avgLatency
			c.hasBaseline = true
		}
	}

	next := effectiveMax
	latencyHigh := c.hasBaseline && c.emaLatency > c.baseline*c.latencyThreshold
	latencyOK := !c.hasBaseline || c.emaLatency <= c.baseline*1.1

	switch {
	case c.emaDenyRate > c.targetDenyRate || latencyHigh:
		next = effectiveMax - 1
		if next < c.minConcurrency {
			next = c.minConcurrency
		}
	case effectiveMax < maxWeight && c.emaDenyRate < c.targetDenyRate/2 && latencyOK:
		next = effectiveMax + 1
		if next > maxWeight {
			next = maxWeight
		}
	}

	c.denyCount = 0
	c.totalCount = 0
	c.latencySum = 0
	c.latencyN = 0

	return next, next != effectiveMax
}

func ema(prev, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*prev
}
