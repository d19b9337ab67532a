// Package calling implements Harbor's voice/video call signaling state
// machine (spec §4.9 supplement): Harbor only ever relays signed SDP
// offers/answers and ICE candidates between two peers — it never
// parses or validates the SDP body itself, treating pion/webrtc
// types purely as opaque serialization containers for those
// strings, exactly as SPEC_FULL.md's C8 section scopes it.
//
// Grounded on the ringing/connected/ended call lifecycle described in
// original_source/src-tauri/src/services/call_service.rs, and on
// core/network.go's explicit state-machine-with-mutex style.
package calling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/harborsync"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/permission"
)

// State is a call's lifecycle stage.
type State string

const (
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

// ErrInvalidTransition is returned when a signaling message arrives for
// a call in a state that cannot accept it (e.g. an Answer for a call
// already Ended).
var ErrInvalidTransition = errors.New("calling: invalid state transition")

// ErrUnknownCall is returned for a signaling message referencing a
// call_id the local node has no record of.
var ErrUnknownCall = errors.New("calling: unknown call id")

type callState struct {
	peerID string
	state  State
}

// Manager tracks in-flight calls and signs/verifies the signaling
// envelopes that drive their state machine.
type Manager struct {
	identity *identity.Service
	perm     *permission.Engine
	mu       harborsync.PoisonRWMutex
	calls    map[string]*callState
}

// New builds a call manager.
func New(id *identity.Service, perm *permission.Engine) *Manager {
	return &Manager{identity: id, perm: perm, calls: make(map[string]*callState)}
}

// StartCall places an outbound call, signing and returning the SDP
// offer envelope. sdp is an opaque string produced by a
// webrtc.SessionDescription the caller already built; Harbor does not
// inspect it beyond using webrtc.SessionDescription as the wire type.
// Requires peer_has_capability(callee, call) (spec §4.7).
func (m *Manager) StartCall(callID, calleePeerID string, offer webrtc.SessionDescription, now time.Time) (envelope.SignalingOffer, []byte, error) {
	caller, err := m.identity.PeerID()
	if err != nil {
		return envelope.SignalingOffer{}, nil, err
	}
	if err := m.perm.RequireCapability(calleePeerID, permission.CapCall, now); err != nil {
		return envelope.SignalingOffer{}, nil, fmt.Errorf("calling: start call: %w", err)
	}
	msg := envelope.SignalingOffer{CallID: callID, Caller: caller, Callee: calleePeerID, SDP: offer.SDP, Timestamp: now.Unix()}
	sig, err := m.identity.Sign(msg)
	if err != nil {
		return envelope.SignalingOffer{}, nil, err
	}
	if err := m.mu.Write(func() error {
		m.calls[callID] = &callState{peerID: calleePeerID, state: StateRinging}
		return nil
	}); err != nil {
		return envelope.SignalingOffer{}, nil, err
	}
	return msg, sig, nil
}

// AnswerCall accepts an inbound call that is currently Ringing,
// transitioning it to Connected. Requires we_have_capability(caller,
// call) (spec §4.7): the local node must itself hold a call grant.
func (m *Manager) AnswerCall(callID, callerPeerID string, answer webrtc.SessionDescription, now time.Time) (envelope.SignalingAnswer, []byte, error) {
	callee, err := m.identity.PeerID()
	if err != nil {
		return envelope.SignalingAnswer{}, nil, err
	}
	if err := m.perm.RequireCapability(callee, permission.CapCall, now); err != nil {
		return envelope.SignalingAnswer{}, nil, fmt.Errorf("calling: answer call: %w", err)
	}
	if err := m.transition(callID, StateRinging, StateConnected, callerPeerID); err != nil {
		return envelope.SignalingAnswer{}, nil, err
	}
	msg := envelope.SignalingAnswer{CallID: callID, Caller: callerPeerID, Callee: callee, SDP: answer.SDP, Timestamp: now.Unix()}
	sig, err := m.identity.Sign(msg)
	if err != nil {
		return envelope.SignalingAnswer{}, nil, err
	}
	return msg, sig, nil
}

// ApplyRemoteAnswer moves a call the local node placed from Ringing to
// Connected once the callee's answer arrives.
func (m *Manager) ApplyRemoteAnswer(callID, calleePeerID string) error {
	return m.transition(callID, StateRinging, StateConnected, calleePeerID)
}

// SendIceCandidate signs a single opaque ICE candidate for any call the
// manager knows about, whatever its state (ICE trickles during
// negotiation, and an Ended call still accepts it).
func (m *Manager) SendIceCandidate(callID string, candidate string, sdpMid *string, sdpMLineIndex *uint16, now time.Time) (envelope.SignalingIce, []byte, error) {
	sender, err := m.identity.PeerID()
	if err != nil {
		return envelope.SignalingIce{}, nil, err
	}
	if err := m.requireExists(callID); err != nil {
		return envelope.SignalingIce{}, nil, err
	}
	msg := envelope.SignalingIce{CallID: callID, Sender: sender, Candidate: candidate, SDPMid: sdpMid, SDPMLineIndex: sdpMLineIndex, Timestamp: now.Unix()}
	sig, err := m.identity.Sign(msg)
	if err != nil {
		return envelope.SignalingIce{}, nil, err
	}
	return msg, sig, nil
}

// HangUp ends a call from any state.
func (m *Manager) HangUp(callID, reason string, now time.Time) (envelope.SignalingHangup, []byte, error) {
	sender, err := m.identity.PeerID()
	if err != nil {
		return envelope.SignalingHangup{}, nil, err
	}
	_ = m.mu.Write(func() error {
		if c, ok := m.calls[callID]; ok {
			c.state = StateEnded
		}
		return nil
	})
	msg := envelope.SignalingHangup{CallID: callID, Sender: sender, Reason: reason, Timestamp: now.Unix()}
	sig, err := m.identity.Sign(msg)
	if err != nil {
		return envelope.SignalingHangup{}, nil, err
	}
	return msg, sig, nil
}

// State returns the current state of a tracked call.
func (m *Manager) State(callID string) (State, error) {
	var st State
	err := m.mu.Read(func() error {
		c, ok := m.calls[callID]
		if !ok {
			return ErrUnknownCall
		}
		st = c.state
		return nil
	})
	return st, err
}

func (m *Manager) requireExists(callID string) error {
	return m.mu.Read(func() error {
		if _, ok := m.calls[callID]; !ok {
			return ErrUnknownCall
		}
		return nil
	})
}

func (m *Manager) transition(callID string, from, to State, remotePeerID string) error {
	return m.mu.Write(func() error {
		c, ok := m.calls[callID]
		if !ok {
			// An inbound call we haven't seen the offer for locally yet;
			// record it so the answer path still has a state to move.
			c = &callState{peerID: remotePeerID, state: from}
			m.calls[callID] = c
		}
		if c.state != from {
			return fmt.Errorf("%w: call %s is %s, expected %s", ErrInvalidTransition, callID, c.state, from)
		}
		c.state = to
		return nil
	})
}
