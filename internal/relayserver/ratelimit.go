package relayserver

import (
	"sync"
	"time"
)

// rateWindow tracks one peer's request count within the current fixed
// window. Resolved from original_source/relay-server/src/main.rs's
// PeerRateLimiter: despite "sliding window" language in casual
// descriptions, the Rust implementation resets a plain counter every
// window duration rather than maintaining a rolling log of timestamps —
// Harbor's relay reproduces that fixed-window behavior rather than a
// true sliding window.
type rateWindow struct {
	count      int
	windowEnds time.Time
}

// RateLimiter enforces maxRequests per peer per window, evicting
// windows that started more than 2x window ago to bound memory from
// peers that connect once and never return.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*rateWindow
	maxRequests int
	window      time.Duration
	nowFn       func() time.Time
	lastSweep   time.Time
}

// NewRateLimiter builds a fixed-window limiter. nowFn defaults to
// time.Now if nil.
func NewRateLimiter(maxRequests int, window time.Duration, nowFn func() time.Time) *RateLimiter {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &RateLimiter{
		windows:     make(map[string]*rateWindow),
		maxRequests: maxRequests,
		window:      window,
		nowFn:       nowFn,
		lastSweep:   nowFn(),
	}
}

// Allow reports whether peerID may make another request right now,
// incrementing its counter if so.
func (r *RateLimiter) Allow(peerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	r.sweepLocked(now)

	w, ok := r.windows[peerID]
	if !ok || now.After(w.windowEnds) {
		w = &rateWindow{count: 0, windowEnds: now.Add(r.window)}
		r.windows[peerID] = w
	}
	if w.count >= r.maxRequests {
		return false
	}
	w.count++
	return true
}

// sweepLocked evicts windows whose start lies more than 2x the window
// duration in the past. Must be called with r.mu held.
func (r *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	staleBefore := now.Add(-2 * r.window)
	for peerID, w := range r.windows {
		if w.windowEnds.Add(-r.window).Before(staleBefore) {
			delete(r.windows, peerID)
		}
	}
}
