package transport

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	circuit "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/client"
	"github.com/libp2p/go-libp2p/p2p/protocol/identify"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/bakobiibizo/harbor/internal/harborlog"
)

// RequestHandler answers an inbound request frame on one of Harbor's
// sub-protocols, returning the response value to frame back.
type RequestHandler func(ctx context.Context, from peer.ID, req any) (any, error)

// Host owns a libp2p host.Host and drives it from a single goroutine,
// the same ownership model as the teacher's Node in core/network.go:
// everything that touches libp2p state funnels through one loop via
// the command channel, and every external observer gets events fanned
// out rather than touching Host's internals directly.
type Host struct {
	h           host.Host
	dht         *dht.IpfsDHT
	ping        *ping.PingService
	identify    *identify.IDService
	relayClient bool

	handlers map[protocol.ID]RequestHandler

	commands chan Command
	events   chan Event
	subsMu   sync.Mutex
	subs     []chan Event

	peerMu sync.RWMutex
	peers  map[peer.ID]struct{}

	natMgr   *NATManager
	natState NATState

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures a new Host.
type Config struct {
	ListenAddrs    []string
	PrivateKey     crypto.PrivKey
	DiscoveryTag   string
	BootstrapPeers []string
	EnableRelay    bool

	// IdentifyProtocolVersion overrides the identify protocol's
	// advertised version string (spec §6: bootstrap advertises
	// "/harbor/bootstrap/1.0.0", the relay "/harbor-relay/1.0.0", full
	// clients "/harbor/1.0.0"). Empty keeps libp2p's default.
	IdentifyProtocolVersion string
}

// New constructs and starts a Host: builds the libp2p host, wires
// ping/identify, a Harbor-scoped kad-DHT, mDNS discovery, and a relay
// client, then launches the owning goroutine. Mirrors
// core/network.go's NewNode almost line for line, generalized from a
// single listen address to a slice and from the blockchain gossip
// topics to Harbor's four request-response sub-protocols.
func New(cfg Config) (*Host, error) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := []libp2p.Option{libp2p.ListenAddrStrings(cfg.ListenAddrs...)}
	if cfg.PrivateKey != nil {
		opts = append(opts, libp2p.Identity(cfg.PrivateKey))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	pingSvc := ping.NewPingService(h)
	idOpts := []identify.Option{}
	if cfg.IdentifyProtocolVersion != "" {
		idOpts = append(idOpts, identify.ProtocolVersion(cfg.IdentifyProtocolVersion))
	}
	idSvc, err := identify.NewIDService(h, idOpts...)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: create identify service: %w", err)
	}

	kad, err := dht.New(ctx, h, dht.ProtocolPrefix(protocol.ID("/harbor")))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: create dht: %w", err)
	}

	t := &Host{
		h:        h,
		dht:      kad,
		ping:     pingSvc,
		identify: idSvc,
		handlers: make(map[protocol.ID]RequestHandler),
		commands: make(chan Command, 256),
		events:   make(chan Event, 256),
		peers:    make(map[peer.ID]struct{}),
		natState: NATUnknown,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	t.relayClient = cfg.EnableRelay

	if natMgr, err := NewNATManager(); err == nil {
		t.natMgr = natMgr
		logNATResult(classifyNAT(true, natMgr.ExternalIP()), natMgr.ExternalIP())
	} else {
		harborlog.With("transport").Warnf("nat discovery failed: %v", err)
	}

	if err := t.dialSeeds(cfg.BootstrapPeers); err != nil {
		harborlog.With("transport").Warnf("dial seeds warning: %v", err)
	}

	if cfg.DiscoveryTag != "" {
		if _, err := mdns.NewMdnsService(h, cfg.DiscoveryTag, &mdnsNotifee{t: t}).Start(); err == nil {
			harborlog.With("transport").Info("mdns discovery started")
		}
	}

	go t.loop()
	return t, nil
}

// Handle registers a sub-protocol request handler and installs the
// corresponding libp2p stream handler.
func (t *Host) Handle(p protocol.ID, fn RequestHandler) {
	t.handlers[p] = fn
	t.h.SetStreamHandler(p, func(s network.Stream) {
		defer s.Close()
		var req any
		br := bufio.NewReader(s)
		if err := readFrame(br, &req); err != nil {
			harborlog.With("transport").Warnf("read request on %s: %v", p, err)
			return
		}
		resp, err := fn(t.ctx, s.Conn().RemotePeer(), req)
		if err != nil {
			harborlog.With("transport").Warnf("handler error on %s: %v", p, err)
			return
		}
		if err := writeFrame(s, resp); err != nil {
			harborlog.With("transport").Warnf("write response on %s: %v", p, err)
		}
	})
}

// Subscribe returns a channel of fanned-out events. The channel stays
// registered for the Host's lifetime and is never closed by the Host.
func (t *Host) Subscribe() chan Event {
	ch := make(chan Event, 32)
	t.subsMu.Lock()
	t.subs = append(t.subs, ch)
	t.subsMu.Unlock()
	return ch
}

func (t *Host) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case cmd := <-t.commands:
			t.handleCommand(cmd)
		}
	}
}

func (t *Host) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdConnect:
		err := t.h.Connect(cmd.Ctx, cmd.AddrInfo)
		if err == nil {
			t.addPeer(cmd.AddrInfo.ID)
		}
		cmd.Response <- CommandResult{Err: err}
	case CmdSendRequest:
		resp, err := t.sendRequest(cmd.Ctx, cmd.PeerID, protocol.ID(cmd.Protocol), cmd.Request)
		cmd.Response <- CommandResult{Reply: resp, Err: err}
	case CmdShutdown:
		t.cancel()
		cmd.Response <- CommandResult{}
	}
}

func (t *Host) sendRequest(ctx context.Context, p peer.ID, proto protocol.ID, req any) (any, error) {
	s, err := t.h.NewStream(ctx, p, proto)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream: %w", err)
	}
	defer s.Close()
	if err := writeFrame(s, req); err != nil {
		return nil, err
	}
	var resp any
	if err := readFrame(bufio.NewReader(s), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Connect issues a CmdConnect and blocks for the result.
func (t *Host) Connect(ctx context.Context, ai peer.AddrInfo) error {
	reply := make(chan CommandResult, 1)
	select {
	case t.commands <- Command{Kind: CmdConnect, Ctx: ctx, AddrInfo: ai, Response: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case res := <-reply:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendRequest issues a CmdSendRequest and blocks for the result.
func (t *Host) SendRequest(ctx context.Context, p peer.ID, proto protocol.ID, req any) (any, error) {
	reply := make(chan CommandResult, 1)
	select {
	case t.commands <- Command{Kind: CmdSendRequest, Ctx: ctx, PeerID: p, Protocol: string(proto), Request: req, Response: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.Reply, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the event loop and closes the underlying libp2p host.
func (t *Host) Shutdown(ctx context.Context) error {
	reply := make(chan CommandResult, 1)
	select {
	case t.commands <- Command{Kind: CmdShutdown, Ctx: ctx, Response: reply}:
		<-reply
	case <-ctx.Done():
	}
	<-t.done
	return t.h.Close()
}

// ID returns this host's libp2p peer ID.
func (t *Host) ID() peer.ID { return t.h.ID() }

// ReserveRelay requests a circuit relay v2 reservation on relayInfo, so
// this host becomes dialable through the relay when directly
// unreachable (spec §4.9: relay client only). No Host built by New
// acts as a relay server.
func (t *Host) ReserveRelay(ctx context.Context, relayInfo peer.AddrInfo) error {
	if !t.relayClient {
		return fmt.Errorf("transport: relay client not enabled")
	}
	if err := t.h.Connect(ctx, relayInfo); err != nil {
		return fmt.Errorf("transport: connect to relay: %w", err)
	}
	if _, err := circuit.Reserve(ctx, t.h, relayInfo); err != nil {
		return fmt.Errorf("transport: reserve relay circuit: %w", err)
	}
	return nil
}

func (t *Host) dialSeeds(seeds []string) error {
	var firstErr error
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			harborlog.With("transport").Warnf("invalid bootstrap addr %s: %v", addr, err)
			continue
		}
		if err := t.h.Connect(t.ctx, *pi); err != nil {
			harborlog.With("transport").Warnf("connect to bootstrap %s: %v", addr, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		t.addPeer(pi.ID)
		harborlog.With("transport").Infof("bootstrapped to %s", addr)
	}
	return firstErr
}

func (t *Host) addPeer(id peer.ID) {
	t.peerMu.Lock()
	_, existed := t.peers[id]
	t.peers[id] = struct{}{}
	t.peerMu.Unlock()
	if !existed {
		t.fanOut(Event{Kind: EventPeerConnected, PeerID: id})
	}
}

func (t *Host) fanOut(ev Event) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		case <-time.After(time.Second):
			harborlog.With("transport").Warn("dropping event for slow subscriber")
		}
	}
}

type mdnsNotifee struct{ t *Host }

// HandlePeerFound implements mdns.Notifee: connect to a discovered
// peer, ignoring ourselves and peers we already know (spec §4.9 mDNS
// discovery).
func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.t.h.ID() {
		return
	}
	n.t.peerMu.RLock()
	_, exists := n.t.peers[info.ID]
	n.t.peerMu.RUnlock()
	if exists {
		return
	}
	n.t.fanOut(Event{Kind: EventPeerDiscovered, PeerID: info.ID})
	if err := n.t.h.Connect(n.t.ctx, info); err != nil {
		harborlog.With("transport").Warnf("failed to connect to discovered peer %s: %v", info.ID, err)
		return
	}
	n.t.addPeer(info.ID)
}
