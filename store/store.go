// Package store owns the set of active leases. It is a leaf package: it
// defines the Lease record itself (mirrored at the admitgov root as a type
// alias) so that it never needs to import its caller, the same way erl/store
// mirrors erl.Window instead of importing the erl package.
package store

// Priority is the scheduling class a lease was requested under.
type Priority string

const (
	// Interactive leases may consume the concurrency pool's interactive
	// reserve; they represent user-facing, latency-sensitive work.
	Interactive Priority = "interactive"
	// Background leases are never allowed to dip into the interactive
	// reserve.
	Background Priority = "background"
)

// Lease is an issued permission to perform one unit of outbound work.
type Lease struct {
	ID              string
	ActorID         string
	Action          string
	Priority        Priority
	Weight          int
	IdempotencyKey  string
	CreatedAt       int64
	ExpiresAt       int64
	EstimatedTokens int64
}

// Store maps lease ids to Lease records and secondarily indexes by
// idempotency key.
type Store struct {
	byID   map[string]*Lease
	byIdem map[string]string // idempotency_key -> lease id
}

// New creates an empty LeaseStore.
func New() *Store {
	return &Store{
		byID:   make(map[string]*Lease),
		byIdem: make(map[string]string),
	}
}

// Add inserts a lease, indexing it by idempotency key if one is set.
func (s *Store) Add(l *Lease) {
	s.byID[l.ID] = l
	if l.IdempotencyKey != "" {
		s.byIdem[l.IdempotencyKey] = l.ID
	}
}

// Get looks up a lease by id.
func (s *Store) Get(id string) (*Lease, bool) {
	l, ok := s.byID[id]
	return l, ok
}

// GetByIdempotencyKey looks up a lease by idempotency key. If the indexed
// lease no longer exists, the stale index entry is cleaned up and the
// lookup reports a miss.
func (s *Store) GetByIdempotencyKey(key string) (*Lease, bool) {
	id, ok := s.byIdem[key]
	if !ok {
		return nil, false
	}
	l, ok := s.byID[id]
	if !ok {
		delete(s.byIdem, key)
		return nil, false
	}
	return l, true
}

// Remove deletes a lease by id, cleaning up its idempotency index entry if
// present, and returns the removed lease (or nil if it was not found).
func (s *Store) Remove(id string) *Lease {
	l, ok := s.byID[id]
	if !ok {
		return nil
	}
	delete(s.byID, id)
	if l.IdempotencyKey != "" {
		if cur, ok := s.byIdem[l.IdempotencyKey]; ok && cur == id {
			delete(s.byIdem, l.IdempotencyKey)
		}
	}
	return l
}

// Len returns the number of active leases.
func (s *Store) Len() int {
	return len(s.byID)
}

// EarliestExpiry returns the minimum ExpiresAt among all active leases, or
// ok=false if the store is empty.
func (s *Store) EarliestExpiry() (ms int64, ok bool) {
	first := true
	for _, l := range s.byID {
		if first || l.ExpiresAt < ms {
			ms = l.ExpiresAt
			first = false
		}
	}
	return ms, !first
}

// Sweep removes and returns every lease whose ExpiresAt <= now. It is
// idempotent and a no-op when nothing has expired.
func (s *Store) Sweep(now int64) []*Lease {
	var expired []*Lease
	for id, l := range s.byID {
		if l.ExpiresAt <= now {
			expired = append(expired, l)
			delete(s.byID, id)
			if l.IdempotencyKey != "" {
				if cur, ok := s.byIdem[l.IdempotencyKey]; ok && cur == id {
					delete(s.byIdem, l.IdempotencyKey)
				}
			}
		}
	}
	return expired
}

// All returns every active lease. Callers must not mutate the returned
// slice's contents.
func (s *Store) All() []*Lease {
	out := make([]*Lease, 0, len(s.byID))
	for _, l := range s.byID {
		out = append(out, l)
	}
	return out
}
