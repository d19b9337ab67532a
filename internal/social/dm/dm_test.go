package dm

import (
	"bytes"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/permission"
	"github.com/bakobiibizo/harbor/internal/store"
)

type party struct {
	id     *identity.Service
	svc    *Service
	db     *sql.DB
	perm   *permission.Engine
	peerID string
}

func newParty(t *testing.T, dbPath string) party {
	t.Helper()
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	id, err := identity.New(t.TempDir())
	if err != nil {
		t.Fatalf("identity new: %v", err)
	}
	peerID, err := id.Create("pass")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clocks := clockstore.New(db)
	perm := permission.NewEngine(db)
	svc := New(db, id, clocks, perm)
	return party{id: id, svc: svc, db: db, perm: perm, peerID: peerID}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	alice := newParty(t, filepath.Join(dir, "alice.db"))
	bob := newParty(t, filepath.Join(dir, "bob.db"))

	alicePub, err := alice.id.PublicKey()
	if err != nil {
		t.Fatalf("alice pub: %v", err)
	}
	_, aliceXPub, err := alice.id.X25519KeyPair()
	if err != nil {
		t.Fatalf("alice x25519: %v", err)
	}
	bobPub, err := bob.id.PublicKey()
	if err != nil {
		t.Fatalf("bob pub: %v", err)
	}
	_, bobXPub, err := bob.id.X25519KeyPair()
	if err != nil {
		t.Fatalf("bob x25519: %v", err)
	}

	// Alice and Bob exchange contact key material out of band.
	if err := store.UpsertContact(alice.db, store.Contact{PeerID: bob.peerID, Ed25519PublicKey: bobPub, X25519PublicKey: bobXPub[:], AddedAt: 1}); err != nil {
		t.Fatalf("alice upsert bob: %v", err)
	}
	if err := store.UpsertContact(bob.db, store.Contact{PeerID: alice.peerID, Ed25519PublicKey: alicePub, X25519PublicKey: aliceXPub[:], AddedAt: 1}); err != nil {
		t.Fatalf("bob upsert alice: %v", err)
	}

	// Alice has granted Bob chat capability in her own store.
	if _, err := alice.perm.Grant(store.Grant{
		Subject: bob.peerID, Capability: string(permission.CapChat), Issuer: alice.peerID, GrantID: "g1", LamportClock: 1, IssuedAt: 1,
	}); err != nil {
		t.Fatalf("grant chat: %v", err)
	}

	conversationID := "conv-1"
	now := time.Unix(1000, 0)
	msg, sig, err := alice.svc.Send("m1", conversationID, bob.peerID, "text/plain", []byte("hello bob"), nil, now)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	plaintext, err := bob.svc.Receive(alicePub, msg, sig, now)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello bob")) {
		t.Fatalf("plaintext mismatch: %q", plaintext)
	}

	// Replaying the exact same message must be rejected.
	if _, err := bob.svc.Receive(alicePub, msg, sig, now); err != clockstore.ErrNonceReused {
		t.Fatalf("expected ErrNonceReused on replay, got %v", err)
	}
}

func TestSendRejectsWithoutChatCapability(t *testing.T) {
	dir := t.TempDir()
	alice := newParty(t, filepath.Join(dir, "alice.db"))
	bob := newParty(t, filepath.Join(dir, "bob.db"))

	bobPub, err := bob.id.PublicKey()
	if err != nil {
		t.Fatalf("bob pub: %v", err)
	}
	_, bobXPub, err := bob.id.X25519KeyPair()
	if err != nil {
		t.Fatalf("bob x25519: %v", err)
	}
	if err := store.UpsertContact(alice.db, store.Contact{PeerID: bob.peerID, Ed25519PublicKey: bobPub, X25519PublicKey: bobXPub[:], AddedAt: 1}); err != nil {
		t.Fatalf("alice upsert bob: %v", err)
	}

	_, _, err = alice.svc.Send("m1", "conv-1", bob.peerID, "text/plain", []byte("hi"), nil, time.Unix(1000, 0))
	if !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("expected permission denied without a chat grant, got %v", err)
	}
}
