package transport

import "github.com/libp2p/go-libp2p/core/protocol"

// The four request-response sub-protocol IDs Harbor defines (spec
// §4.9/§6); a Host serves one only once Handle registers a handler for
// it. Plus the Harbor-scoped DHT protocol name so kad
// traffic never mixes with an unrelated libp2p DHT on the same network.
const (
	ProtocolIdentity    = protocol.ID("/harbor/identity/1.0.0")
	ProtocolMessaging   = protocol.ID("/harbor/messaging/1.0.0")
	ProtocolContentSync = protocol.ID("/harbor/content-sync/1.0.0")
	ProtocolBoard       = protocol.ID("/harbor/board/1.0.0")
	ProtocolKad         = protocol.ID("/harbor/kad/1.0.0")
)
