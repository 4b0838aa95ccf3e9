package stats

import (
	"testing"

	"github.com/admitgov/admitgov"
)

func TestAggregatorTracksDenyRate(t *testing.T) {
	agg := NewAggregator()

	agg.Observe(admitgov.GovernorEvent{Type: admitgov.EventAcquire})
	agg.Observe(admitgov.GovernorEvent{Type: admitgov.EventAcquire})
	agg.Observe(admitgov.GovernorEvent{Type: admitgov.EventDeny, Reason: admitgov.DenyConcurrency})

	if got := agg.DenyRate(); got != 1.0/3.0 {
		t.Fatalf("DenyRate = %v, want 1/3", got)
	}

	counts := agg.DenyCountByReason()
	if counts[admitgov.DenyConcurrency] != 1 {
		t.Fatalf("DenyCountByReason[concurrency] = %d, want 1", counts[admitgov.DenyConcurrency])
	}
}

func TestAggregatorLatencyPercentile(t *testing.T) {
	agg := NewAggregator()
	for _, ms := range []float64{10, 20, 30, 40, 50} {
		agg.RecordLatency(ms)
	}

	p50, err := agg.LatencyPercentile(50)
	if err != nil {
		t.Fatalf("LatencyPercentile: %v", err)
	}
	if p50 != 30 {
		t.Fatalf("p50 = %v, want 30", p50)
	}

	mean, err := agg.MeanLatency()
	if err != nil {
		t.Fatalf("MeanLatency: %v", err)
	}
	if mean != 30 {
		t.Fatalf("mean = %v, want 30", mean)
	}
}

func TestAggregatorLatencyPercentileEmptyErrors(t *testing.T) {
	agg := NewAggregator()
	if _, err := agg.LatencyPercentile(50); err == nil {
		t.Fatal("expected an error with no samples recorded")
	}
}

func TestAggregatorRingBoundsMemory(t *testing.T) {
	agg := NewAggregator()
	agg.maxSamples = 3
	agg.RecordLatency(1)
	agg.RecordLatency(2)
	agg.RecordLatency(3)
	agg.RecordLatency(4)

	if len(agg.latencies) != 3 {
		t.Fatalf("len(latencies) = %d, want 3", len(agg.latencies))
	}
	if agg.latencies[0] != 2 {
		t.Fatalf("oldest surviving sample = %v, want 2 (1 evicted)", agg.latencies[0])
	}
}
