package network

import (
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/bakobiibizo/harbor/internal/transport"
)

// PeerState is a node in the per-remote-peer state machine observed
// from the transport event loop (spec §4.12): Discovered -> Dialing ->
// Connected -> {Identified, Disconnected}.
type PeerState int

const (
	StateUnknown PeerState = iota
	StateDiscovered
	StateDialing
	StateConnected
	StateIdentified
	StateDisconnected
)

// PeerTable tracks every remote peer's last observed state, updated by
// consuming transport.Event from the Host's subscription channel.
type PeerTable struct {
	mu     sync.RWMutex
	states map[peer.ID]PeerState
}

func newPeerTable() *PeerTable {
	return &PeerTable{states: make(map[peer.ID]PeerState)}
}

func (t *PeerTable) state(p peer.ID) PeerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[p]; ok {
		return s
	}
	return StateUnknown
}

func (t *PeerTable) transitionTo(p peer.ID, s PeerState) {
	t.mu.Lock()
	t.states[p] = s
	t.mu.Unlock()
}

// run consumes transport events until the channel closes, applying each
// to the table. Events only ever move a peer forward except for a
// failed dial, which Connect itself reverts to Discovered directly
// (the event stream has no "dial failed" event of its own — the
// transport layer reports discoveries and successful connections).
func (t *PeerTable) run(events chan transport.Event) {
	for ev := range events {
		switch ev.Kind {
		case transport.EventPeerDiscovered:
			t.transitionTo(ev.PeerID, StateDiscovered)
		case transport.EventPeerConnected:
			t.transitionTo(ev.PeerID, StateConnected)
		case transport.EventPeerIdentified:
			t.transitionTo(ev.PeerID, StateIdentified)
		case transport.EventPeerDisconnected:
			t.transitionTo(ev.PeerID, StateDisconnected)
		}
	}
}
