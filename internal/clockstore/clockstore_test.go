package clockstore

import (
	"path/filepath"
	"testing"

	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "harbor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestNextLamportClockMonotonic(t *testing.T) {
	s := newTestStore(t)
	c1, err := s.NextLamportClock("alice")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	c2, err := s.NextLamportClock("alice")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c2 <= c1 {
		t.Fatalf("expected monotonic increase, got %d then %d", c1, c2)
	}
}

func TestObserveLamportClockMergesForward(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.NextLamportClock("bob"); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := s.ObserveLamportClock("bob", 100); err != nil {
		t.Fatalf("observe: %v", err)
	}
	next, err := s.NextLamportClock("bob")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != 101 {
		t.Fatalf("expected clock to merge forward to 101, got %d", next)
	}
}

func TestNextSendCounterStartsAtZero(t *testing.T) {
	s := newTestStore(t)
	c0, err := s.NextSendCounter("conv-1")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c0 != 0 {
		t.Fatalf("expected first counter to be 0, got %d", c0)
	}
	c1, err := s.NextSendCounter("conv-1")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c1 != 1 {
		t.Fatalf("expected second counter to be 1, got %d", c1)
	}
}

func TestCheckAndRecordNonceRejectsReplay(t *testing.T) {
	s := newTestStore(t)
	if err := s.CheckAndRecordNonce("alice", "conv-1", 0, 1000); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := s.CheckAndRecordNonce("alice", "conv-1", 0, 1001); err != ErrNonceReused {
		t.Fatalf("expected ErrNonceReused, got %v", err)
	}
	// A different sender or conversation with the same counter is fine.
	if err := s.CheckAndRecordNonce("bob", "conv-1", 0, 1002); err != nil {
		t.Fatalf("different sender should not collide: %v", err)
	}
}
