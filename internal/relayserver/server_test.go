package relayserver

import (
	"crypto/ed25519"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "relay.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, Config{CommunityName: "test", RateLimitMaxRequests: 100, RateLimitWindow: time.Minute}), db
}

func TestRegisterPeerThenSubmitWallPost(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Unix(1700000000, 0)

	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)
	submitterPub, submitterPriv, _ := ed25519.GenerateKey(nil)

	authorReg := envelope.PeerRegistration{PeerID: "author-1", PublicKey: authorPub, DisplayName: "Author", Timestamp: now.Unix()}
	authorSig, err := envelope.Sign(authorPriv, authorReg)
	if err != nil {
		t.Fatalf("sign author reg: %v", err)
	}
	if err := srv.RegisterPeer(authorReg, authorSig, now); err != nil {
		t.Fatalf("register author: %v", err)
	}

	submitterReg := envelope.PeerRegistration{PeerID: "submitter-1", PublicKey: submitterPub, DisplayName: "Submitter", Timestamp: now.Unix()}
	submitterSig, err := envelope.Sign(submitterPriv, submitterReg)
	if err != nil {
		t.Fatalf("sign submitter reg: %v", err)
	}
	if err := srv.RegisterPeer(submitterReg, submitterSig, now); err != nil {
		t.Fatalf("register submitter: %v", err)
	}

	post := envelope.Post{
		PostID: "post-1", Author: "author-1", ContentType: "text/plain",
		Visibility: "public", LamportClock: 1, CreatedAt: now.Unix(),
	}
	innerSig, err := envelope.Sign(authorPriv, post)
	if err != nil {
		t.Fatalf("sign post: %v", err)
	}
	req := envelope.SubmitWallPostRequest{SubmittingPeer: "submitter-1", Post: post, InnerSignature: innerSig, Timestamp: now.Unix()}
	reqSig, err := envelope.Sign(submitterPriv, req)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}

	applied, err := srv.SubmitWallPost(req, reqSig, now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !applied {
		t.Fatalf("expected first submission to apply")
	}

	applied, err = srv.SubmitWallPost(req, reqSig, now)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !applied {
		t.Fatalf("expected wall-mirror resubmission to be applied idempotently, not rejected")
	}
}

func TestSubmitWallPostRejectsBannedSubmitter(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Unix(1700000000, 0)

	submitterPub, submitterPriv, _ := ed25519.GenerateKey(nil)
	reg := envelope.PeerRegistration{PeerID: "bad-peer", PublicKey: submitterPub, Timestamp: now.Unix()}
	sig, _ := envelope.Sign(submitterPriv, reg)
	if err := srv.RegisterPeer(reg, sig, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := srv.Ban("bad-peer", "spam", now); err != nil {
		t.Fatalf("ban: %v", err)
	}

	post := envelope.Post{PostID: "post-2", Author: "bad-peer", ContentType: "text/plain", Visibility: "public", LamportClock: 1, CreatedAt: now.Unix()}
	innerSig, _ := envelope.Sign(submitterPriv, post)
	req := envelope.SubmitWallPostRequest{SubmittingPeer: "bad-peer", Post: post, InnerSignature: innerSig, Timestamp: now.Unix()}
	reqSig, _ := envelope.Sign(submitterPriv, req)

	if _, err := srv.SubmitWallPost(req, reqSig, now); err != ErrBanned {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
}

func TestCreateBoardAndListBoardPosts(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Unix(1700000000, 0)

	pub, priv, _ := ed25519.GenerateKey(nil)
	reg := envelope.PeerRegistration{PeerID: "relay-owner", PublicKey: pub, Timestamp: now.Unix()}
	sig, _ := envelope.Sign(priv, reg)
	if err := srv.RegisterPeer(reg, sig, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := srv.CreateBoard("relay-owner", "board-1", "General", now); err != nil {
		t.Fatalf("create board: %v", err)
	}

	bp := envelope.BoardPost{PostID: "bp-1", BoardID: "board-1", Author: "relay-owner", ContentType: "text/plain", LamportClock: 1, CreatedAt: now.Unix()}
	bpSig, _ := envelope.Sign(priv, bp)
	if err := srv.SubmitBoardPost(bp, bpSig, now); err != nil {
		t.Fatalf("submit board post: %v", err)
	}

	boards, err := srv.ListBoards("relay-owner")
	if err != nil || len(boards) != 1 {
		t.Fatalf("list boards: %v %v", boards, err)
	}
	posts, err := srv.ListBoardPosts("board-1", 1000, 10)
	if err != nil || len(posts) != 1 {
		t.Fatalf("list board posts: %v %v", posts, err)
	}
}

func TestSubmitBoardPostRejectsStaleClock(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Unix(1700000000, 0)

	pub, priv, _ := ed25519.GenerateKey(nil)
	reg := envelope.PeerRegistration{PeerID: "relay-owner", PublicKey: pub, Timestamp: now.Unix()}
	sig, _ := envelope.Sign(priv, reg)
	if err := srv.RegisterPeer(reg, sig, now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := srv.CreateBoard("relay-owner", "board-1", "General", now); err != nil {
		t.Fatalf("create board: %v", err)
	}

	first := envelope.BoardPost{PostID: "bp-10", BoardID: "board-1", Author: "relay-owner", ContentType: "text/plain", LamportClock: 10, CreatedAt: now.Unix()}
	firstSig, _ := envelope.Sign(priv, first)
	if err := srv.SubmitBoardPost(first, firstSig, now); err != nil {
		t.Fatalf("submit first board post: %v", err)
	}

	stale := envelope.BoardPost{PostID: "bp-10-again", BoardID: "board-1", Author: "relay-owner", ContentType: "text/plain", LamportClock: 10, CreatedAt: now.Unix()}
	staleSig, _ := envelope.Sign(priv, stale)
	if err := srv.SubmitBoardPost(stale, staleSig, now); !errors.Is(err, store.ErrStaleClock) {
		t.Fatalf("expected ErrStaleClock for a repeated clock value, got %v", err)
	}

	advanced := envelope.BoardPost{PostID: "bp-11", BoardID: "board-1", Author: "relay-owner", ContentType: "text/plain", LamportClock: 11, CreatedAt: now.Unix()}
	advancedSig, _ := envelope.Sign(priv, advanced)
	if err := srv.SubmitBoardPost(advanced, advancedSig, now); err != nil {
		t.Fatalf("expected advanced clock to be accepted, got %v", err)
	}
}
