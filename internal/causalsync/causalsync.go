// Package causalsync implements Harbor's pull-based content sync engine
// (spec §4.6): manifest exchange over per-author Lamport cursors,
// bounded-size cursor maps, signature checks on fetched content, and
// the five-minute freshness window used to decide whether
// a peer's clock observation is still usable.
//
// Grounded on the original Rust sync engine
// (original_source/src-tauri/src/services/sync_service.rs) and on
// core/wallet.go's error-wrapping idiom.
package causalsync

import (
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/permission"
	"github.com/bakobiibizo/harbor/internal/store"
)

// MaxCursorEntries bounds the size of a cursor map accepted from or
// persisted to a peer (spec's resolved Open Question on unbounded
// cursor maps).
const MaxCursorEntries = 10_000

// FreshnessWindow is how long a manifest response is considered fresh
// enough to act on without re-requesting (spec §4.6).
const FreshnessWindow = 5 * time.Minute

// ErrCursorTooLarge is returned when a cursor map exceeds
// MaxCursorEntries, whether presented by a peer or about to be
// persisted locally.
var ErrCursorTooLarge = errors.New("causalsync: cursor too large")

// ErrStale is returned when a manifest response's timestamp falls
// outside FreshnessWindow of the local clock.
var ErrStale = errors.New("causalsync: manifest response is stale")

// ErrUnknownAuthor is returned when a fetched post's author has no
// known public key to verify against (spec §4.6: fetch requires the
// author already be a known contact or relay peer).
var ErrUnknownAuthor = errors.New("causalsync: unknown author, cannot verify")

// PublicKeyLookup resolves a peer ID to its Ed25519 public key, backed
// by the contacts table or relay peer registry.
type PublicKeyLookup func(peerID string) (ed25519.PublicKey, bool, error)

// Engine drives manifest/fetch exchanges and verifies fetched content;
// it does not write fetched content to the store.
type Engine struct {
	db     *sql.DB
	clocks *clockstore.Store
	perm   *permission.Engine
	lookup PublicKeyLookup
	nowFn  func() time.Time
}

// NewEngine builds a sync engine. db and perm back the responder side
// (BuildManifestResponse); either may be nil for a client-only Engine
// that only ever calls the Verify*/NextManifestRequest helpers. nowFn
// defaults to time.Now if nil; tests may override it for deterministic
// freshness checks.
func NewEngine(db *sql.DB, clocks *clockstore.Store, perm *permission.Engine, lookup PublicKeyLookup, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{db: db, clocks: clocks, perm: perm, lookup: lookup, nowFn: nowFn}
}

// ValidateCursor rejects oversized cursor maps, whether received from a
// peer's ManifestRequest or about to be persisted as a local
// next_cursor.
func ValidateCursor(cursor map[string]uint64) error {
	if len(cursor) > MaxCursorEntries {
		return fmt.Errorf("%w: %d entries", ErrCursorTooLarge, len(cursor))
	}
	return nil
}

// CheckFreshness rejects a manifest response whose timestamp is outside
// the freshness window of local time, in either direction — a response
// claiming to be from the future is just as suspect as a stale one.
func (e *Engine) CheckFreshness(responseTimestamp int64) error {
	now := e.nowFn()
	ts := time.Unix(responseTimestamp, 0)
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > FreshnessWindow {
		return fmt.Errorf("%w: %s old", ErrStale, delta)
	}
	return nil
}

// VerifyManifestResponse checks the responder's signature over resp and
// its freshness.
func (e *Engine) VerifyManifestResponse(resp envelope.ManifestResponse, sig []byte) error {
	if err := ValidateCursor(resp.NextCursor); err != nil {
		return err
	}
	if err := e.CheckFreshness(resp.Timestamp); err != nil {
		return err
	}
	pub, ok, err := e.lookup(resp.Responder)
	if err != nil {
		return fmt.Errorf("causalsync: lookup responder key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuthor, resp.Responder)
	}
	verified, err := envelope.Verify(pub, resp, sig)
	if err != nil {
		return fmt.Errorf("causalsync: verify manifest response: %w", err)
	}
	if !verified {
		return fmt.Errorf("causalsync: manifest response signature invalid")
	}
	return nil
}

// VerifyFetchedPost checks a fetched Post's signature against its
// author's known public key before it is ever written to the store.
func (e *Engine) VerifyFetchedPost(p envelope.Post, sig []byte) error {
	pub, ok, err := e.lookup(p.Author)
	if err != nil {
		return fmt.Errorf("causalsync: lookup author key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAuthor, p.Author)
	}
	verified, err := envelope.Verify(pub, p, sig)
	if err != nil {
		return fmt.Errorf("causalsync: verify fetched post: %w", err)
	}
	if !verified {
		return fmt.Errorf("causalsync: fetched post signature invalid")
	}
	return nil
}

// BuildManifestResponse is the responder side of spec §4.6 step 2: it
// verifies the requester's signature, requires the requester hold
// wall_read (§4.7's "Serving a wall Manifest/Fetch to requester R
// requires peer_has_capability(R, wall_read)" — the same gate applies
// uniformly to every visibility level per S4, where a public post is
// withheld exactly like a contacts post until the grant exists), then
// returns this node's own posts past the requester's cursor for this
// peer, oldest first, up to limit.
func (e *Engine) BuildManifestResponse(localPeerID string, req envelope.ManifestRequest, sig []byte, now time.Time) (envelope.ManifestResponse, error) {
	if err := ValidateCursor(req.Cursor); err != nil {
		return envelope.ManifestResponse{}, err
	}
	if err := e.CheckFreshness(req.Timestamp); err != nil {
		return envelope.ManifestResponse{}, err
	}
	requesterPub, ok, err := e.lookup(req.Requester)
	if err != nil {
		return envelope.ManifestResponse{}, fmt.Errorf("causalsync: lookup requester key: %w", err)
	}
	if !ok {
		return envelope.ManifestResponse{}, fmt.Errorf("%w: %s", ErrUnknownAuthor, req.Requester)
	}
	verified, err := envelope.Verify(requesterPub, req, sig)
	if err != nil {
		return envelope.ManifestResponse{}, fmt.Errorf("causalsync: verify manifest request: %w", err)
	}
	if !verified {
		return envelope.ManifestResponse{}, fmt.Errorf("causalsync: manifest request signature invalid")
	}
	if err := e.perm.RequireCapability(req.Requester, permission.CapWallRead, now); err != nil {
		return envelope.ManifestResponse{}, fmt.Errorf("causalsync: build manifest response: %w", err)
	}

	limit := int(req.Limit)
	if limit <= 0 {
		limit = 50
	}
	cursor := req.Cursor[localPeerID]
	posts, err := store.ListPostsAfterCursor(e.db, localPeerID, cursor, limit)
	if err != nil {
		return envelope.ManifestResponse{}, fmt.Errorf("causalsync: build manifest response: %w", err)
	}

	summaries := make([]envelope.PostSummary, 0, len(posts))
	for _, p := range posts {
		summaries = append(summaries, envelope.PostSummary{
			PostID: p.PostID, Author: p.Author, LamportClock: p.LamportClock,
			ContentType: p.ContentType, HasMedia: len(p.MediaHashes) > 0, MediaHashes: p.MediaHashes,
			CreatedAt: p.CreatedAt,
		})
	}

	nextCursor := MergeCursor(copyCursor(req.Cursor), localPeerID, cursor)
	if len(posts) > 0 {
		nextCursor = MergeCursor(nextCursor, localPeerID, posts[len(posts)-1].LamportClock)
	}

	return envelope.ManifestResponse{
		Responder:  localPeerID,
		Posts:      summaries,
		HasMore:    len(posts) >= limit,
		NextCursor: nextCursor,
		Timestamp:  now.Unix(),
	}, nil
}

func copyCursor(cursor map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(cursor))
	for k, v := range cursor {
		out[k] = v
	}
	return out
}

// NextManifestRequest builds the next outbound ManifestRequest from the
// peer's previously persisted cursor, after checking the cursor against
// MaxCursorEntries. It reads and advances no clocks.
func NextManifestRequest(requester string, cursor map[string]uint64, limit uint32, now time.Time) (envelope.ManifestRequest, error) {
	if err := ValidateCursor(cursor); err != nil {
		return envelope.ManifestRequest{}, err
	}
	return envelope.ManifestRequest{
		Requester: requester,
		Cursor:    cursor,
		Limit:     limit,
		Timestamp: now.Unix(),
	}, nil
}

// MergeCursor advances cursor[author] to clock if clock is higher,
// matching the monotonic Lamport-clock merge rule used elsewhere.
func MergeCursor(cursor map[string]uint64, author string, clock uint64) map[string]uint64 {
	if cursor == nil {
		cursor = make(map[string]uint64, 1)
	}
	if current, ok := cursor[author]; !ok || clock > current {
		cursor[author] = clock
	}
	return cursor
}
