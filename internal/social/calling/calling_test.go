package calling

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/permission"
	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	id, err := identity.New(t.TempDir())
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	localPeerID, err := id.Create("pass")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	db, err := store.Open(filepath.Join(t.TempDir(), "harbor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	perm := permission.NewEngine(db)
	// Local has granted "callee-peer" and "caller-peer" the call
	// capability, and holds a call grant of its own so AnswerCall's
	// we_have_capability check passes.
	for i, subject := range []string{"callee-peer", "caller-peer", localPeerID} {
		if _, err := perm.Grant(store.Grant{
			Subject: subject, Capability: string(permission.CapCall), Issuer: localPeerID,
			GrantID: fmt.Sprintf("g%d", i), LamportClock: uint64(i + 1), IssuedAt: 1,
		}); err != nil {
			t.Fatalf("grant call capability to %s: %v", subject, err)
		}
	}
	return New(id, perm)
}

func TestCallLifecycle(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1000, 0)
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0..."}
	_, sig, err := m.StartCall("call-1", "callee-peer", offer, now)
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	st, err := m.State("call-1")
	if err != nil || st != StateRinging {
		t.Fatalf("expected ringing, got %v err=%v", st, err)
	}

	if err := m.ApplyRemoteAnswer("call-1", "callee-peer"); err != nil {
		t.Fatalf("apply remote answer: %v", err)
	}
	st, err = m.State("call-1")
	if err != nil || st != StateConnected {
		t.Fatalf("expected connected, got %v err=%v", st, err)
	}

	if _, _, err := m.HangUp("call-1", "normal", now.Add(time.Minute)); err != nil {
		t.Fatalf("hang up: %v", err)
	}
	st, err = m.State("call-1")
	if err != nil || st != StateEnded {
		t.Fatalf("expected ended, got %v err=%v", st, err)
	}
}

func TestAnswerUnseenCallCreatesRingingState(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1000, 0)
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0..."}
	if _, _, err := m.AnswerCall("missing-call", "caller-peer", answer, now); err != nil {
		// AnswerCall lazily creates Ringing state for an unseen inbound
		// call, so this should actually succeed.
		t.Fatalf("expected lazily-created ringing call to answer, got %v", err)
	}
}

func TestHangUpThenIceStillSendable(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1000, 0)
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0..."}
	if _, _, err := m.StartCall("call-2", "callee-peer", offer, now); err != nil {
		t.Fatalf("start call: %v", err)
	}
	if _, _, err := m.HangUp("call-2", "normal", now); err != nil {
		t.Fatalf("hang up: %v", err)
	}
	if _, _, err := m.SendIceCandidate("call-2", "candidate-1", nil, nil, now); err != nil {
		t.Fatalf("ice candidate after hangup should still be sendable against a known call id: %v", err)
	}
}
