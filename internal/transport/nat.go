// Package transport implements Harbor's P2P networking layer (spec
// §4.9): a single event-loop goroutine owning a libp2p host, the
// request-response sub-protocols for direct messages, sync, boards and
// signaling, mDNS discovery, and NAT-state tracking.
//
// Grounded on core/network.go's NewNode/DialSeed/HandlePeerFound
// structure, core/peer_management.go's PeerManagement wrapper, and
// core/nat_traversal.go's NATManager for gateway discovery and port
// mapping.
package transport

import (
	"fmt"
	"net"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/bakobiibizo/harbor/internal/harborlog"
)

// NATState is the node's best-known reachability classification (spec
// §4.9). DCUtR-based hole punching is left off by default; a node
// behind a NAT relies on circuit relay v2 rather than attempting direct
// hole punching.
type NATState string

const (
	NATUnknown    NATState = "unknown"
	NATPublic     NATState = "public"
	NATPrivate    NATState = "private"
	NATBehindNAT  NATState = "behind_nat"
)

// NATManager discovers the gateway's external IP and maps a port via
// NAT-PMP or UPnP, falling back gracefully when neither is reachable
// (a node might simply be on a public IP already).
type NATManager struct {
	ip         net.IP
	pmp        *natpmp.Client
	upnp       *internetgateway1.WANIPConnection1
	mappedPort int
}

// NewNATManager discovers the gateway and external IP.
func NewNATManager() (*NATManager, error) {
	m := &NATManager{}
	if gw, err := gateway.DiscoverGateway(); err == nil {
		m.pmp = natpmp.NewClient(gw)
		if res, err := m.pmp.GetExternalAddress(); err == nil {
			m.ip = net.IPv4(res.ExternalIPAddress[0], res.ExternalIPAddress[1], res.ExternalIPAddress[2], res.ExternalIPAddress[3])
		}
	}
	if m.ip == nil {
		if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
			m.upnp = clients[0]
			if ipStr, err := m.upnp.GetExternalIPAddress(); err == nil {
				m.ip = net.ParseIP(ipStr)
			}
		}
	}
	if m.ip == nil {
		return nil, fmt.Errorf("transport: gateway not found")
	}
	return m, nil
}

// ExternalIP returns the detected public IP address.
func (m *NATManager) ExternalIP() net.IP { return m.ip }

// Map opens port on the gateway via whichever protocol discovery found.
func (m *NATManager) Map(port int) error {
	if m.pmp != nil {
		if _, err := m.pmp.AddPortMapping("tcp", port, port, 3600); err == nil {
			m.mappedPort = port
			return nil
		}
	}
	if m.upnp != nil {
		if err := m.upnp.AddPortMapping("", uint16(port), "TCP", uint16(port), m.ip.String(), true, "harbor", 3600); err == nil {
			m.mappedPort = port
			return nil
		}
	}
	return fmt.Errorf("transport: no NAT mapping method succeeded")
}

// classifyNAT derives a NATState from whether a port mapping succeeded
// and whether the listen address appears to be a private range. This is
// a heuristic, not an AutoNAT-quality reachability probe; Host runs no
// AutoNAT service.
func classifyNAT(mapped bool, externalIP net.IP) NATState {
	if externalIP == nil {
		return NATUnknown
	}
	if externalIP.IsPrivate() {
		return NATPrivate
	}
	if mapped {
		return NATPublic
	}
	return NATBehindNAT
}

func logNATResult(state NATState, externalIP net.IP) {
	harborlog.With("transport").Infof("nat state: %s external_ip: %v", state, externalIP)
}
