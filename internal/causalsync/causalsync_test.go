package causalsync

import (
	"crypto/ed25519"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/cryptocore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/permission"
	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "harbor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestClocks(t *testing.T) *clockstore.Store {
	t.Helper()
	return clockstore.New(newTestDB(t))
}

func TestValidateCursorRejectsOversized(t *testing.T) {
	cursor := make(map[string]uint64, MaxCursorEntries+1)
	for i := 0; i < MaxCursorEntries+1; i++ {
		cursor[string(rune(i))] = uint64(i)
	}
	if err := ValidateCursor(cursor); !errors.Is(err, ErrCursorTooLarge) {
		t.Fatalf("expected ErrCursorTooLarge, got %v", err)
	}
}

func TestVerifyManifestResponseRejectsStale(t *testing.T) {
	pub, priv, err := cryptocore.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	fixedNow := time.Unix(100_000, 0)
	lookup := func(peerID string) (ed25519.PublicKey, bool, error) { return pub, true, nil }
	db := newTestDB(t)
	e := NewEngine(db, clockstore.New(db), permission.NewEngine(db), lookup, func() time.Time { return fixedNow })

	resp := envelope.ManifestResponse{
		Responder:  "relay-1",
		Timestamp:  fixedNow.Add(-10 * time.Minute).Unix(),
		NextCursor: map[string]uint64{},
	}
	sig, err := envelope.Sign(priv, resp)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := e.VerifyManifestResponse(resp, sig); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	resp.Timestamp = fixedNow.Unix()
	sig, err = envelope.Sign(priv, resp)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := e.VerifyManifestResponse(resp, sig); err != nil {
		t.Fatalf("expected fresh response to verify, got %v", err)
	}
}

func TestVerifyFetchedPostRejectsUnknownAuthor(t *testing.T) {
	lookup := func(peerID string) (ed25519.PublicKey, bool, error) { return nil, false, nil }
	db := newTestDB(t)
	e := NewEngine(db, clockstore.New(db), permission.NewEngine(db), lookup, nil)
	p := envelope.Post{PostID: "p1", Author: "stranger", ContentType: "text/plain", Visibility: "public", LamportClock: 1, CreatedAt: 1}
	if err := e.VerifyFetchedPost(p, []byte{0x01}); !errors.Is(err, ErrUnknownAuthor) {
		t.Fatalf("expected ErrUnknownAuthor, got %v", err)
	}
}

func TestBuildManifestResponseRequiresWallRead(t *testing.T) {
	requesterPub, requesterPriv, err := cryptocore.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	localPeerID := "local-peer"
	requester := "requester-peer"
	lookup := func(peerID string) (ed25519.PublicKey, bool, error) {
		if peerID == requester {
			return requesterPub, true, nil
		}
		return nil, false, nil
	}
	now := time.Unix(200_000, 0)
	db := newTestDB(t)
	perm := permission.NewEngine(db)
	e := NewEngine(db, clockstore.New(db), perm, lookup, func() time.Time { return now })

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// A public post and a contacts-only post; S4 says both are withheld
	// without wall_read and both released once it is granted.
	if err := store.InsertPost(tx, store.Post{PostID: "p1", Author: localPeerID, ContentType: "text/plain", Visibility: "public", LamportClock: 1, CreatedAt: now.Unix()}); err != nil {
		t.Fatalf("insert post p1: %v", err)
	}
	if err := store.InsertPost(tx, store.Post{PostID: "p2", Author: localPeerID, ContentType: "text/plain", Visibility: "contacts", LamportClock: 2, CreatedAt: now.Unix()}); err != nil {
		t.Fatalf("insert post p2: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	req := envelope.ManifestRequest{Requester: requester, Cursor: map[string]uint64{}, Limit: 50, Timestamp: now.Unix()}
	sig, err := envelope.Sign(requesterPriv, req)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}

	if _, err := e.BuildManifestResponse(localPeerID, req, sig, now); !errors.Is(err, permission.ErrPermissionDenied) {
		t.Fatalf("expected permission denied without wall_read grant, got %v", err)
	}

	if _, err := perm.Grant(store.Grant{
		Subject: requester, Capability: string(permission.CapWallRead), Issuer: localPeerID,
		GrantID: "g1", LamportClock: 1, IssuedAt: 1,
	}); err != nil {
		t.Fatalf("grant wall_read: %v", err)
	}

	resp, err := e.BuildManifestResponse(localPeerID, req, sig, now)
	if err != nil {
		t.Fatalf("build manifest response: %v", err)
	}
	if len(resp.Posts) != 2 {
		t.Fatalf("expected both public and contacts posts once wall_read is granted, got %d", len(resp.Posts))
	}
	if resp.NextCursor[localPeerID] != 2 {
		t.Fatalf("expected next cursor to advance to 2, got %d", resp.NextCursor[localPeerID])
	}
}

func TestMergeCursorKeepsHighest(t *testing.T) {
	c := map[string]uint64{"alice": 5}
	c = MergeCursor(c, "alice", 3)
	if c["alice"] != 5 {
		t.Fatalf("expected cursor to keep higher value, got %d", c["alice"])
	}
	c = MergeCursor(c, "alice", 10)
	if c["alice"] != 10 {
		t.Fatalf("expected cursor to advance to 10, got %d", c["alice"])
	}
}
