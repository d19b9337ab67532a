// Package relayserver implements Harbor's optional relay node (spec
// §4.10): a long-running peer that hosts community boards and mirrors
// members' wall posts, all gated by a per-peer fixed-window rate limiter
// and a ban list checked before any signature verification. It serves
// no circuit relay v2 reservations; Config's MaxReservations,
// MaxCircuitsPerPeer and MaxCircuits are stored but not applied.
//
// Grounded on original_source/relay-server/src/{main.rs,db.rs} and the
// teacher's single-owner-goroutine style in core/network.go.
package relayserver

import (
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/store"
)

// ErrBanned is returned for any request from a banned peer, before its
// signature is even checked.
var ErrBanned = fmt.Errorf("relayserver: peer is banned")

// ErrRateLimited is returned when a peer exceeds its request budget.
var ErrRateLimited = fmt.Errorf("relayserver: rate limit exceeded")

// ErrUnknownPeer is returned when a request references a peer with no
// registered public key.
var ErrUnknownPeer = fmt.Errorf("relayserver: peer not registered")

// Config configures a Server.
type Config struct {
	CommunityName        string
	MaxReservations      int
	MaxCircuitsPerPeer   int
	MaxCircuits          int
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
}

// Server drives the relay's request handling against its sqlite store.
type Server struct {
	db     *sql.DB
	cfg    Config
	limits *RateLimiter
}

// New builds a relay server over db (already migrated via store.Open).
func New(db *sql.DB, cfg Config) *Server {
	if cfg.RateLimitMaxRequests <= 0 {
		cfg.RateLimitMaxRequests = 60
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	return &Server{db: db, cfg: cfg, limits: NewRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, nil)}
}

// gate applies the ban check and rate limit shared by every request
// handler, in that order: a banned peer is rejected before it can even
// burn rate-limit budget probing the server.
func (s *Server) gate(peerID string) error {
	banned, err := store.IsBanned(s.db, peerID)
	if err != nil {
		return err
	}
	if banned {
		return ErrBanned
	}
	if !s.limits.Allow(peerID) {
		return ErrRateLimited
	}
	return nil
}

// RegisterPeer records a peer's public key, gated by ban/rate-limit
// checks performed before the signature is verified.
func (s *Server) RegisterPeer(reg envelope.PeerRegistration, sig []byte, now time.Time) error {
	if err := s.gate(reg.PeerID); err != nil {
		return err
	}
	pub := ed25519.PublicKey(reg.PublicKey)
	verified, err := envelope.Verify(pub, reg, sig)
	if err != nil {
		return fmt.Errorf("relayserver: register peer: verify: %w", err)
	}
	if !verified {
		return fmt.Errorf("relayserver: register peer: invalid signature")
	}
	return store.UpsertKnownPeer(s.db, reg.PeerID, reg.DisplayName, reg.PublicKey, now.Unix())
}

// SubmitWallPost verifies and atomically mirrors a member's wall post.
// Both signatures are checked: the submitter's over the whole request,
// and the inner author signature over the carried Post, since a relay
// member may resubmit content on the author's behalf (e.g. while the
// author is offline) without being able to forge authorship.
func (s *Server) SubmitWallPost(req envelope.SubmitWallPostRequest, requestSig []byte, now time.Time) (applied bool, err error) {
	if err := s.gate(req.SubmittingPeer); err != nil {
		return false, err
	}
	submitterKey, ok, err := store.GetKnownPeerKey(s.db, req.SubmittingPeer)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrUnknownPeer
	}
	verified, err := envelope.Verify(ed25519.PublicKey(submitterKey), req, requestSig)
	if err != nil {
		return false, fmt.Errorf("relayserver: submit wall post: verify request: %w", err)
	}
	if !verified {
		return false, fmt.Errorf("relayserver: submit wall post: invalid request signature")
	}

	authorKey, ok, err := store.GetKnownPeerKey(s.db, req.Post.Author)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: author %s", ErrUnknownPeer, req.Post.Author)
	}
	innerVerified, err := envelope.Verify(ed25519.PublicKey(authorKey), req.Post, req.InnerSignature)
	if err != nil {
		return false, fmt.Errorf("relayserver: submit wall post: verify inner post: %w", err)
	}
	if !innerVerified {
		return false, fmt.Errorf("relayserver: submit wall post: invalid author signature")
	}

	applied, err = store.InsertWallPostAtomic(s.db, req.Post.PostID, req.Post.Author, req.Post.ContentType, req.Post.ContentText,
		req.InnerSignature, req.SubmittingPeer, req.Post.LamportClock, now.Unix())
	if err != nil {
		return false, err
	}
	if applied {
		harborlog.With("relayserver").Infof("mirrored wall post %s from %s", req.Post.PostID, req.Post.Author)
	}
	return applied, nil
}

// CreateBoard registers a new community board.
func (s *Server) CreateBoard(requesterPeerID, boardID, name string, now time.Time) error {
	if err := s.gate(requesterPeerID); err != nil {
		return err
	}
	return store.CreateBoard(s.db, boardID, requesterPeerID, name, now.Unix())
}

// SubmitBoardPost verifies and persists a board post. The insert itself
// enforces clock monotonicity per author on this relay (spec §4.10 step
// 4): a submission at or below the author's last-seen clock is rejected
// with store.ErrStaleClock rather than applied.
func (s *Server) SubmitBoardPost(bp envelope.BoardPost, sig []byte, now time.Time) error {
	if err := s.gate(bp.Author); err != nil {
		return err
	}
	authorKey, ok, err := store.GetKnownPeerKey(s.db, bp.Author)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, bp.Author)
	}
	verified, err := envelope.Verify(ed25519.PublicKey(authorKey), bp, sig)
	if err != nil {
		return fmt.Errorf("relayserver: submit board post: verify: %w", err)
	}
	if !verified {
		return fmt.Errorf("relayserver: submit board post: invalid signature")
	}
	if err := store.InsertBoardPostAtomic(s.db, store.BoardPost{
		PostID: bp.PostID, BoardID: bp.BoardID, Author: bp.Author, ContentType: bp.ContentType,
		ContentText: bp.ContentText, LamportClock: bp.LamportClock, CreatedAt: bp.CreatedAt,
	}); err != nil {
		return fmt.Errorf("relayserver: submit board post: %w", err)
	}
	return nil
}

// ListBoards returns every board this relay hosts under its community.
func (s *Server) ListBoards(relayPeerID string) ([]string, error) {
	return store.ListBoards(s.db, relayPeerID)
}

// ListBoardPosts returns a page of posts for a board.
func (s *Server) ListBoardPosts(boardID string, beforeClock uint64, limit int) ([]store.BoardPost, error) {
	return store.ListBoardPosts(s.db, boardID, beforeClock, limit)
}

// Ban adds a peer to the ban list, e.g. after repeated invalid
// signatures or abuse reports from community moderators.
func (s *Server) Ban(peerID, reason string, now time.Time) error {
	return store.BanPeer(s.db, peerID, reason, now.Unix())
}
