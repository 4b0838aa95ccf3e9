package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/admitgov/admitgov"
)

// PrometheusCollector exposes a Governor's live Snapshot and an
// Aggregator's cumulative counters as Prometheus gauges and counters,
// grounded on the GaugeVec/CounterVec registration style of
// ozanturksever-go-cluster's Metrics type.
type PrometheusCollector struct {
	governor *admitgov.Governor
	agg      *Aggregator

	inFlightWeight  prometheus.Gauge
	effectiveMax    prometheus.Gauge
	maxWeight       prometheus.Gauge
	activeLeases    prometheus.Gauge
	requestRateUsed prometheus.Gauge
	tokenRateUsed   prometheus.Gauge
	latencyP50      prometheus.Gauge
	latencyP99      prometheus.Gauge

	acquireTotal prometheus.Counter
	denyTotal    *prometheus.CounterVec
	releaseTotal *prometheus.CounterVec
	expireTotal  prometheus.Counter
}

// NewPrometheusCollector builds a collector for g. agg may be nil, in
// which case the latency gauges stay at zero; pass the same *Aggregator
// already wired to the governor's OnEvent to populate them.
func NewPrometheusCollector(g *admitgov.Governor, agg *Aggregator, namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		governor: g,
		agg:      agg,

		inFlightWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "in_flight_weight", Help: "Current in-flight concurrency weight.",
		}),
		effectiveMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "effective_max", Help: "Current adaptive concurrency ceiling.",
		}),
		maxWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "max_weight", Help: "Configured hard concurrency ceiling.",
		}),
		activeLeases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_leases", Help: "Currently active leases.",
		}),
		requestRateUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "request_rate_used", Help: "Requests counted in the current rolling window.",
		}),
		tokenRateUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "token_rate_used", Help: "Tokens counted in the current rolling window.",
		}),
		latencyP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "release_latency_p50_ms", Help: "50th percentile release latency in milliseconds.",
		}),
		latencyP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "release_latency_p99_ms", Help: "99th percentile release latency in milliseconds.",
		}),
		acquireTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "acquire_total", Help: "Total granted acquires.",
		}),
		denyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "deny_total", Help: "Total denials by reason.",
		}, []string{"reason"}),
		releaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "release_total", Help: "Total releases by outcome.",
		}, []string{"outcome"}),
		expireTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expire_total", Help: "Total leases reclaimed by the TTL reaper.",
		}),
	}
}

// Register registers every metric the collector owns with reg.
func (c *PrometheusCollector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.inFlightWeight, c.effectiveMax, c.maxWeight, c.activeLeases,
		c.requestRateUsed, c.tokenRateUsed, c.latencyP50, c.latencyP99,
		c.acquireTotal, c.denyTotal, c.releaseTotal, c.expireTotal,
	)
}

// Observe is an admitgov.EventHandler that increments the collector's
// counters. Wire it into Config.OnEvent alongside (or instead of) an
// Aggregator's own Observe.
func (c *PrometheusCollector) Observe(ev admitgov.GovernorEvent) {
	switch ev.Type {
	case admitgov.EventAcquire:
		c.acquireTotal.Inc()
	case admitgov.EventDeny:
		c.denyTotal.WithLabelValues(string(ev.Reason)).Inc()
	case admitgov.EventRelease:
		c.releaseTotal.WithLabelValues(string(ev.Outcome)).Inc()
	case admitgov.EventExpire:
		c.expireTotal.Inc()
	}
}

// Refresh pulls the governor's current Snapshot, and the aggregator's
// latency percentiles if one was supplied, into the registered gauges.
// Call it on a timer, or immediately before a scrape.
func (c *PrometheusCollector) Refresh() {
	snap := c.governor.Snapshot()
	c.activeLeases.Set(float64(snap.ActiveLeases))
	if snap.Concurrency != nil {
		c.inFlightWeight.Set(float64(snap.Concurrency.InFlightWeight))
		c.effectiveMax.Set(float64(snap.Concurrency.EffectiveMax))
		c.maxWeight.Set(float64(snap.Concurrency.Max))
	}
	if snap.RequestRate != nil {
		c.requestRateUsed.Set(float64(snap.RequestRate.Current))
	}
	if snap.TokenRate != nil {
		c.tokenRateUsed.Set(float64(snap.TokenRate.Current))
	}
	if c.agg == nil {
		return
	}
	if p50, err := c.agg.LatencyPercentile(50); err == nil {
		c.latencyP50.Set(p50)
	}
	if p99, err := c.agg.LatencyPercentile(99); err == nil {
		c.latencyP99.Set(p99)
	}
}
