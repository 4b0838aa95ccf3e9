package store

import "testing"

func TestAddGetRemove(t *testing.T) {
	s := New()
	l := &Lease{ID: "l1", ExpiresAt: 100}
	s.Add(l)

	got, ok := s.Get("l1")
	if !ok || got != l {
		t.Fatal("Get should return the added lease")
	}

	removed := s.Remove("l1")
	if removed != l {
		t.Fatal("Remove should return the prior value")
	}
	if _, ok := s.Get("l1"); ok {
		t.Fatal("lease should be gone after Remove")
	}
	if s.Remove("l1") != nil {
		t.Fatal("removing an already-removed lease should return nil")
	}
}

func TestIdempotencyIndexCleansUpStaleEntries(t *testing.T) {
	s := New()
	l := &Lease{ID: "l1", IdempotencyKey: "k1"}
	s.Add(l)

	got, ok := s.GetByIdempotencyKey("k1")
	if !ok || got != l {
		t.Fatal("GetByIdempotencyKey should find the lease")
	}

	s.Remove("l1")
	if _, ok := s.GetByIdempotencyKey("k1"); ok {
		t.Fatal("stale idempotency entry should be cleaned up after Remove")
	}
}

func TestEarliestExpiry(t *testing.T) {
	s := New()
	if _, ok := s.EarliestExpiry(); ok {
		t.Fatal("empty store should report no earliest expiry")
	}
	s.Add(&Lease{ID: "a", ExpiresAt: 300})
	s.Add(&Lease{ID: "b", ExpiresAt: 100})
	s.Add(&Lease{ID: "c", ExpiresAt: 200})

	ms, ok := s.EarliestExpiry()
	if !ok || ms != 100 {
		t.Fatalf("EarliestExpiry = %d, want 100", ms)
	}
}

func TestSweepRemovesExpiredAndIsIdempotent(t *testing.T) {
	s := New()
	s.Add(&Lease{ID: "a", ExpiresAt: 100, IdempotencyKey: "ka"})
	s.Add(&Lease{ID: "b", ExpiresAt: 200})

	expired := s.Sweep(100)
	if len(expired) != 1 || expired[0].ID != "a" {
		t.Fatalf("Sweep = %v, want [a]", expired)
	}
	if _, ok := s.GetByIdempotencyKey("ka"); ok {
		t.Fatal("swept lease's idempotency entry should also be removed")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	// second sweep at the same time finds nothing left to reap.
	if again := s.Sweep(100); len(again) != 0 {
		t.Fatalf("second Sweep = %v, want empty", again)
	}
}

func TestAllReturnsEveryActiveLease(t *testing.T) {
	s := New()
	s.Add(&Lease{ID: "a"})
	s.Add(&Lease{ID: "b"})
	if len(s.All()) != 2 {
		t.Fatalf("All() returned %d leases, want 2", len(s.All()))
	}
}
