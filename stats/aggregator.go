package stats

import (
	"sync"

	mstats "github.com/montanaflynn/stats"

	"github.com/admitgov/admitgov"
)

const defaultMaxLatencySamples = 2000

// Aggregator consumes GovernorEvents — typically wired as (part of) a
// Config.OnEvent handler — and keeps rolling deny-rate and latency
// statistics. Percentile summaries are computed with
// github.com/montanaflynn/stats.
//
// Release latency does not travel on GovernorEvent (the event payload
// carries only outcome and weight), so callers that measure latency
// themselves feed it to RecordLatency alongside their own Release call.
// lease.WithLease, transport.Transport and breaker.Guarded pass their
// measured latency only to Governor.Release; none of them calls an
// Aggregator.
type Aggregator struct {
	mu sync.Mutex

	totalAcquires int64
	totalDenies   int64
	totalReleases int64
	totalExpires  int64
	denyByReason  map[admitgov.DenyReason]int64

	latencies  []float64
	maxSamples int
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		denyByReason: make(map[admitgov.DenyReason]int64),
		maxSamples:   defaultMaxLatencySamples,
	}
}

// Observe is an admitgov.EventHandler. Pass it directly as Config.OnEvent,
// or call it from within a handler that also does other work.
func (a *Aggregator) Observe(ev admitgov.GovernorEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Type {
	case admitgov.EventAcquire:
		a.totalAcquires++
	case admitgov.EventDeny:
		a.totalDenies++
		a.denyByReason[ev.Reason]++
	case admitgov.EventRelease:
		a.totalReleases++
	case admitgov.EventExpire:
		a.totalExpires++
	}
}

// RecordLatency adds a release latency sample in milliseconds, evicting the
// oldest sample once the ring fills so memory stays bounded.
func (a *Aggregator) RecordLatency(ms float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) >= a.maxSamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, ms)
}

// DenyRate returns the fraction of observed acquire attempts (granted or
// denied) that were denied. Returns 0 if nothing has been observed yet.
func (a *Aggregator) DenyRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.totalAcquires + a.totalDenies
	if total == 0 {
		return 0
	}
	return float64(a.totalDenies) / float64(total)
}

// DenyCountByReason returns a snapshot copy of cumulative denial counts,
// keyed by DenyReason.
func (a *Aggregator) DenyCountByReason() map[admitgov.DenyReason]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[admitgov.DenyReason]int64, len(a.denyByReason))
	for k, v := range a.denyByReason {
		out[k] = v
	}
	return out
}

// Counts returns the cumulative acquire/deny/release/expire totals
// observed so far.
func (a *Aggregator) Counts() (acquires, denies, releases, expires int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalAcquires, a.totalDenies, a.totalReleases, a.totalExpires
}

// LatencyPercentile returns the p-th percentile (0-100, nearest-rank) of
// recorded release-latency samples in milliseconds. Returns an error if no
// samples have been recorded yet.
func (a *Aggregator) LatencyPercentile(p float64) (float64, error) {
	a.mu.Lock()
	samples := append([]float64(nil), a.latencies...)
	a.mu.Unlock()
	return mstats.PercentileNearestRank(mstats.Float64Data(samples), p)
}

// MeanLatency returns the arithmetic mean of recorded release-latency
// samples in milliseconds. Returns an error if no samples have been
// recorded yet.
func (a *Aggregator) MeanLatency() (float64, error) {
	a.mu.Lock()
	samples := append([]float64(nil), a.latencies...)
	a.mu.Unlock()
	return mstats.Mean(mstats.Float64Data(samples))
}
