package relayserver

import (
	"testing"
	"time"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute, func() time.Time { return now })

	if !rl.Allow("peer-1") {
		t.Fatalf("expected first request allowed")
	}
	if !rl.Allow("peer-1") {
		t.Fatalf("expected second request allowed")
	}
	if rl.Allow("peer-1") {
		t.Fatalf("expected third request in same window to be denied")
	}

	// Advance past the window: the counter resets rather than sliding.
	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("peer-1") {
		t.Fatalf("expected request allowed in fresh window")
	}
}

func TestRateLimiterPerPeerIndependent(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1, time.Minute, func() time.Time { return now })
	if !rl.Allow("alice") {
		t.Fatalf("expected alice's first request allowed")
	}
	if !rl.Allow("bob") {
		t.Fatalf("expected bob's first request allowed independently of alice")
	}
	if rl.Allow("alice") {
		t.Fatalf("expected alice's second request denied")
	}
}

func TestRateLimiterSweepsStaleWindows(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1, time.Minute, func() time.Time { return now })
	rl.Allow("peer-1")
	now = now.Add(3 * time.Minute)
	rl.Allow("peer-2") // triggers a sweep pass
	rl.mu.Lock()
	_, stillTracked := rl.windows["peer-1"]
	rl.mu.Unlock()
	if stillTracked {
		t.Fatalf("expected stale peer-1 window to be evicted")
	}
}
