package store

import (
	"database/sql"
	"fmt"
)

// UpsertKnownPeer records or refreshes a peer a relay has seen.
func UpsertKnownPeer(db *sql.DB, peerID, displayName string, pubKey []byte, now int64) error {
	_, err := db.Exec(`INSERT INTO known_peers (peer_id, ed25519_public_key, display_name, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET last_seen_at = excluded.last_seen_at, display_name = excluded.display_name`,
		peerID, pubKey, displayName, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert known peer: %w", err)
	}
	return nil
}

// GetKnownPeerKey fetches a known peer's Ed25519 public key.
func GetKnownPeerKey(db *sql.DB, peerID string) ([]byte, bool, error) {
	var key []byte
	err := db.QueryRow(`SELECT ed25519_public_key FROM known_peers WHERE peer_id = ?`, peerID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get known peer key: %w", err)
	}
	return key, true, nil
}

// IsBanned reports whether peerID is on the ban list. Checked before
// any signature verification on the relay's hot path (spec §4.10).
func IsBanned(db *sql.DB, peerID string) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM banned_peers WHERE peer_id = ?`, peerID).Scan(&n); err != nil {
		return false, fmt.Errorf("store: is banned: %w", err)
	}
	return n > 0, nil
}

// BanPeer adds peerID to the ban list.
func BanPeer(db *sql.DB, peerID, reason string, now int64) error {
	_, err := db.Exec(`INSERT INTO banned_peers (peer_id, reason, banned_at) VALUES (?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET reason = excluded.reason`, peerID, reason, now)
	if err != nil {
		return fmt.Errorf("store: ban peer: %w", err)
	}
	return nil
}

// InsertWallPostAtomic mirrors a member's wall post idempotently: a
// resubmission of the same post_id (e.g. a member's own client retrying
// after a dropped connection) simply replaces the row with whatever
// content and clock it carries, rather than being rejected. Unlike
// board posts, the wall mirror is not the source of truth for
// clock-monotonicity enforcement — that lives with the author's own
// node — so there is nothing here for a relay to reject (spec §4.10).
func InsertWallPostAtomic(db *sql.DB, postID, author, contentType string, contentText *string, innerSig []byte, submittingPeer string, lamportClock uint64, createdAt int64) (applied bool, err error) {
	_, err = db.Exec(`INSERT OR REPLACE INTO wall_posts (post_id, author, content_type, content_text, inner_signature, submitting_peer, lamport_clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		postID, author, contentType, contentText, innerSig, submittingPeer, lamportClock, createdAt)
	if err != nil {
		return false, fmt.Errorf("store: insert wall post: %w", err)
	}
	return true, nil
}
