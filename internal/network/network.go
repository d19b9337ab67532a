// Package network implements Harbor's network service facade (spec
// §4.12): a cloneable handle over internal/transport's event loop that
// exposes typed, timeout-bound, request-response operations instead of
// the raw command/event channels underneath.
//
// Grounded on the teacher's core/network.go client-facing wrapper
// around Node (NewNode returns a handle callers clone by passing the
// pointer around, never reaching into the loop directly) and
// core/peer_management.go's connection-state bookkeeping, generalized
// from the teacher's single gossip-peer notion to an explicit
// Discovered/Dialing/Connected/Identified/Disconnected state machine.
package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/transport"
)

// ErrUnavailable is the transient fault signaled to a caller whose
// command could not be queued because the handle's inflight budget is
// exhausted (spec §4.12 backpressure).
var ErrUnavailable = errors.New("network: unavailable (backpressure)")

// DefaultRequestTimeout bounds a single request-response round trip
// absent a caller-supplied context deadline.
const DefaultRequestTimeout = 30 * time.Second

// maxInflight bounds concurrent in-flight operations issued through one
// Handle tree, mirroring spec §4.12's "bounded channel (e.g. 256)".
const maxInflight = 256

// inflightBudget is shared by every clone of a Handle, since the budget
// describes load on the one underlying Host, not per-handle state.
type inflightBudget struct {
	slots chan struct{}
}

func newInflightBudget() *inflightBudget {
	return &inflightBudget{slots: make(chan struct{}, maxInflight)}
}

func (b *inflightBudget) acquire() bool {
	select {
	case b.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (b *inflightBudget) release() {
	select {
	case <-b.slots:
	default:
	}
}

// Handle is a cheap, cloneable reference to a running network service.
// Every clone shares the same underlying Host and inflight budget;
// cloning is just copying the struct, the way the teacher's callers
// pass a *Node pointer around rather than re-dialing.
type Handle struct {
	host   *transport.Host
	budget *inflightBudget
	peers  *PeerTable
}

// New wraps an already-running transport.Host in a Handle and starts
// the peer state-machine tracker that consumes its event stream.
func New(host *transport.Host) *Handle {
	h := &Handle{host: host, budget: newInflightBudget(), peers: newPeerTable()}
	go h.peers.run(host.Subscribe())
	return h
}

// Clone returns a new Handle sharing this one's Host, budget, and peer
// table — safe to hand to another goroutine or component.
func (h *Handle) Clone() *Handle {
	return &Handle{host: h.host, budget: h.budget, peers: h.peers}
}

// ID returns the local peer ID.
func (h *Handle) ID() peer.ID { return h.host.ID() }

// PeerState returns the last observed state machine value for p, or
// StateUnknown if it has never been seen.
func (h *Handle) PeerState(p peer.ID) PeerState { return h.peers.state(p) }

// Connect dials addr with the given timeout, transitioning the target
// through Dialing to Connected, or back to Discovered (not blacklisted)
// on failure per spec §4.12.
func (h *Handle) Connect(ctx context.Context, addr peer.AddrInfo, timeout time.Duration) error {
	if !h.budget.acquire() {
		return ErrUnavailable
	}
	defer h.budget.release()

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h.peers.transitionTo(addr.ID, StateDialing)
	if err := h.host.Connect(ctx, addr); err != nil {
		h.peers.transitionTo(addr.ID, StateDiscovered)
		harborlog.With("network").Warnf("dial %s failed: %v", addr.ID, err)
		return fmt.Errorf("network: connect: %w", err)
	}
	return nil
}

// Request issues a typed request on proto to p and decodes the typed
// response, bounded by timeout (or DefaultRequestTimeout). Cancelling
// ctx drops the waiting caller without disturbing the loop or the
// in-flight command, matching spec §4.12's cancellation semantics.
func (h *Handle) Request(ctx context.Context, p peer.ID, proto protocol.ID, req any, timeout time.Duration) (any, error) {
	if !h.budget.acquire() {
		return nil, ErrUnavailable
	}
	defer h.budget.release()

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := h.host.SendRequest(ctx, p, proto, req)
	if err != nil {
		return nil, fmt.Errorf("network: request on %s: %w", proto, err)
	}
	return resp, nil
}

// Shutdown issues a final Shutdown command and awaits the loop's exit.
func (h *Handle) Shutdown(ctx context.Context) error {
	return h.host.Shutdown(ctx)
}
