package transport

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
)

// CommandKind enumerates the operations Host's owning goroutine accepts
// over its command channel.
type CommandKind int

const (
	CmdConnect CommandKind = iota
	CmdSendRequest
	CmdShutdown
)

// Command is one request into Host's single owning goroutine. Result is
// a channel the caller reads exactly once for the outcome; Host always
// sends to it and never blocks indefinitely, since callers are expected
// to select against ctx.Done() too.
type Command struct {
	Kind     CommandKind
	Ctx      context.Context
	AddrInfo peer.AddrInfo // CmdConnect
	PeerID   peer.ID       // CmdSendRequest
	Protocol string        // CmdSendRequest
	Request  any           // CmdSendRequest
	Response chan CommandResult
}

// CommandResult is what a Command's Response channel receives.
type CommandResult struct {
	Reply any
	Err   error
}

// EventKind enumerates the kinds of NetworkEvent fanned out to
// subscribers.
type EventKind int

const (
	EventPeerDiscovered EventKind = iota
	EventPeerConnected
	EventPeerDisconnected
	EventPeerIdentified
	EventNATStateChanged
)

// Event is a notification fanned out from Host's event loop to every
// subscriber channel (spec §4.12's NetworkEvent).
type Event struct {
	Kind   EventKind
	PeerID peer.ID
	NAT    NATState
}
