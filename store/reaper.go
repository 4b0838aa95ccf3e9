package store

import (
	"sync"
	"time"
)

// Reaper runs tick on a fixed interval as a daemon goroutine: it never
// prevents process shutdown on its own, and Dispose is idempotent so
// callers can defer it unconditionally. Reaper itself knows nothing about
// leases — the owner's tick closure is responsible for locking, sweeping,
// and reacting to whatever it finds, atomically.
type Reaper struct {
	interval time.Duration
	tick     func()

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReaper creates a Reaper that calls tick every interval. It does not
// start the timer; call Start.
func NewReaper(interval time.Duration, tick func()) *Reaper {
	return &Reaper{interval: interval, tick: tick, stop: make(chan struct{})}
}

// Start launches the background timer goroutine.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				r.tick()
			}
		}
	}()
}

// Dispose stops the reaper. It is idempotent and safe to call from multiple
// goroutines.
func (r *Reaper) Dispose() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}
