package limiter

// RequestRate is a rolling-window counter of requests per unit time.
type RequestRate struct {
	w       *window
	cap     int64
	windowMs int64
}

// NewRequestRate builds a pool that admits up to maxPerWindow requests in
// any windowMs-long sliding window.
func NewRequestRate(windowMs, maxPerWindow int64) *RequestRate {
	return &RequestRate{w: newWindow(windowMs), cap: maxPerWindow, windowMs: windowMs}
}

// RateDecision reports the outcome of a rate-pool admission probe.
type RateDecision struct {
	Admitted     bool
	RetryAfterMs int64
	Used         int64
	Limit        int64
}

// Admit prunes the window and probes whether one more request fits. It
// does not record — callers record only after every other limiter has also
// admitted, so a later denial never consumes rate budget.
func (r *RequestRate) Admit(now int64) RateDecision {
	r.w.prune(now)
	used := int64(r.w.count())
	if used >= r.cap {
		oldest, _ := r.w.oldestTs()
		return RateDecision{Admitted: false, RetryAfterMs: clampRetry(oldest + r.windowMs - now), Used: used, Limit: r.cap}
	}
	return RateDecision{Admitted: true, Used: used, Limit: r.cap}
}

// Record charges one request against the window.
func (r *RequestRate) Record(now int64) {
	r.w.push(entry{ts: now})
}

// Used reports the current in-window count after pruning.
func (r *RequestRate) Used(now int64) int64 {
	r.w.prune(now)
	return int64(r.w.count())
}

// Limit returns the configured cap.
func (r *RequestRate) Limit() int64 { return r.cap }
