package identity

import (
	"testing"

	"github.com/bakobiibizo/harbor/internal/envelope"
)

func TestCreateUnlockLockCycle(t *testing.T) {
	svc, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if svc.HasIdentity() {
		t.Fatalf("expected no identity yet")
	}
	pid, err := svc.Create("correct horse battery staple")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if pid == "" {
		t.Fatalf("expected non-empty peer id")
	}
	if _, err := svc.Create("anything"); err != ErrIdentityExists {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}

	svc.Lock()
	if svc.IsUnlocked() {
		t.Fatalf("expected locked")
	}
	if _, err := svc.PeerID(); err != ErrIdentityLocked {
		t.Fatalf("expected ErrIdentityLocked, got %v", err)
	}

	if err := svc.Unlock("wrong passphrase"); err != ErrBadPassphrase {
		t.Fatalf("expected ErrBadPassphrase, got %v", err)
	}
	if err := svc.Unlock("correct horse battery staple"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	gotPid, err := svc.PeerID()
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	if gotPid != pid {
		t.Fatalf("peer id changed across unlock: %s != %s", gotPid, pid)
	}
}

func TestSignRequiresUnlocked(t *testing.T) {
	svc, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := svc.Create("pass"); err != nil {
		t.Fatalf("create: %v", err)
	}
	text := "hi"
	p := envelope.Post{PostID: "p1", Author: "a1", ContentType: "text/plain", ContentText: &text, Visibility: "public", LamportClock: 1, CreatedAt: 1}
	sig, err := svc.Sign(p)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub, err := svc.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	ok, err := envelope.Verify(pub, p, sig)
	if err != nil || !ok {
		t.Fatalf("expected signature to verify, ok=%v err=%v", ok, err)
	}

	svc.Lock()
	if _, err := svc.Sign(p); err != ErrIdentityLocked {
		t.Fatalf("expected ErrIdentityLocked, got %v", err)
	}
}

func TestMissingIdentity(t *testing.T) {
	svc, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := svc.Unlock("pass"); err != ErrIdentityMissing {
		t.Fatalf("expected ErrIdentityMissing, got %v", err)
	}
}
