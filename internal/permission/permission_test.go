package permission

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "harbor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEngine(db)
}

func TestParseCapabilityRejectsUnknown(t *testing.T) {
	if _, err := ParseCapability("not_a_real_cap"); err == nil {
		t.Fatalf("expected error for unknown capability")
	}
	if _, err := ParseCapability(string(CapChat)); err != nil {
		t.Fatalf("expected known capability to parse: %v", err)
	}
}

func TestGrantThenRevoke(t *testing.T) {
	e := newTestEngine(t)
	now := time.Unix(1000, 0)

	g := store.Grant{Subject: "bob", Capability: string(CapChat), Issuer: "alice", GrantID: "g1", LamportClock: 1, IssuedAt: 1000}
	applied, err := e.Grant(g)
	if err != nil || !applied {
		t.Fatalf("grant: applied=%v err=%v", applied, err)
	}
	ok, err := e.WeHaveCapability("bob", CapChat, now)
	if err != nil || !ok {
		t.Fatalf("expected bob to have capability: ok=%v err=%v", ok, err)
	}

	if err := e.RequireCapability("bob", CapCall, now); err != ErrPermissionDenied {
		if _, isDenied := err.(interface{ Unwrap() error }); !isDenied {
			t.Fatalf("expected permission denied wrapping, got %v", err)
		}
	}

	revApplied, err := e.Revoke("g1", 2)
	if err != nil || !revApplied {
		t.Fatalf("revoke: applied=%v err=%v", revApplied, err)
	}
	ok, err = e.WeHaveCapability("bob", CapChat, now)
	if err != nil || ok {
		t.Fatalf("expected capability revoked: ok=%v err=%v", ok, err)
	}
}

func TestStaleGrantLosesToNewer(t *testing.T) {
	e := newTestEngine(t)
	g1 := store.Grant{Subject: "bob", Capability: string(CapChat), Issuer: "alice", GrantID: "g1", LamportClock: 5, IssuedAt: 1000}
	if _, err := e.Grant(g1); err != nil {
		t.Fatalf("grant g1: %v", err)
	}
	stale := store.Grant{Subject: "bob", Capability: string(CapChat), Issuer: "eve", GrantID: "g0", LamportClock: 3, IssuedAt: 999}
	applied, err := e.Grant(stale)
	if err != nil {
		t.Fatalf("grant stale: %v", err)
	}
	if applied {
		t.Fatalf("expected stale grant (clock 3 <= 5) to be rejected")
	}
}
