package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admitgov/admitgov"
)

func newTestGovernor(t *testing.T, maxInFlight int) *admitgov.Governor {
	t.Helper()
	g, err := admitgov.New(admitgov.Config{
		Concurrency: &admitgov.ConcurrencyConfig{MaxInFlight: maxInFlight},
	})
	if err != nil {
		t.Fatalf("admitgov.New: %v", err)
	}
	t.Cleanup(g.Dispose)
	return g
}

func TestWithLeaseRunsAndReleasesOnSuccess(t *testing.T) {
	g := newTestGovernor(t, 1)

	var ran bool
	err := WithLease(context.Background(), g, admitgov.AcquireRequest{ActorID: "a", Action: "x"},
		func(ctx context.Context, l admitgov.Lease) (admitgov.Usage, error) {
			ran = true
			return admitgov.Usage{PromptTokens: 10, OutputTokens: 5}, nil
		},
	)
	if err != nil {
		t.Fatalf("WithLease: %v", err)
	}
	if !ran {
		t.Fatal("fn was not invoked")
	}
	if g.Snapshot().ActiveLeases != 0 {
		t.Error("lease should have been released")
	}
}

func TestWithLeaseReturnsDeniedErrorWithoutRunningFn(t *testing.T) {
	g := newTestGovernor(t, 1)
	decision := g.Acquire(admitgov.AcquireRequest{ActorID: "holder", Action: "x"})
	granted := decision.(admitgov.Granted)
	defer g.Release(granted.LeaseID, nil)

	var ran bool
	err := WithLease(context.Background(), g, admitgov.AcquireRequest{ActorID: "a", Action: "x"},
		func(ctx context.Context, l admitgov.Lease) (admitgov.Usage, error) {
			ran = true
			return admitgov.Usage{}, nil
		},
	)
	if ran {
		t.Fatal("fn should not run when acquisition is denied")
	}
	var denyErr *DeniedError
	if !errors.As(err, &denyErr) {
		t.Fatalf("expected *DeniedError, got %v", err)
	}
}

func TestWithLeasePropagatesFnError(t *testing.T) {
	g := newTestGovernor(t, 1)
	boom := errors.New("boom")

	err := WithLease(context.Background(), g, admitgov.AcquireRequest{ActorID: "a", Action: "x"},
		func(ctx context.Context, l admitgov.Lease) (admitgov.Usage, error) {
			return admitgov.Usage{}, boom
		},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRetryAcquireSucceedsAfterCapacityFrees(t *testing.T) {
	g := newTestGovernor(t, 1)
	decision := g.Acquire(admitgov.AcquireRequest{ActorID: "holder", Action: "x"})
	granted := decision.(admitgov.Granted)

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Release(granted.LeaseID, nil)
	}()

	l, err := RetryAcquire(context.Background(), g, admitgov.AcquireRequest{ActorID: "a", Action: "x"}, RetryPolicy{
		MaxAttempts: 20,
		MaxWait:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RetryAcquire: %v", err)
	}
	if l.ID == "" {
		t.Fatal("expected a lease id")
	}
	g.Release(l.ID, nil)
}

func TestRetryAcquireExhaustsAttempts(t *testing.T) {
	g := newTestGovernor(t, 1)
	decision := g.Acquire(admitgov.AcquireRequest{ActorID: "holder", Action: "x"})
	granted := decision.(admitgov.Granted)
	defer g.Release(granted.LeaseID, nil)

	_, err := RetryAcquire(context.Background(), g, admitgov.AcquireRequest{ActorID: "a", Action: "x"}, RetryPolicy{
		MaxAttempts: 3,
		MaxWait:     time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
}
