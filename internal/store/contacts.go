package store

import (
	"database/sql"
	"fmt"
)

// Contact is a materialized row of the contacts table: the public key
// material needed to verify a remote peer's signatures and derive a
// shared conversation key with them.
type Contact struct {
	PeerID           string
	DisplayName      string
	Ed25519PublicKey []byte
	X25519PublicKey  []byte
	AddedAt          int64
}

// UpsertContact adds or updates a known contact's key material.
func UpsertContact(db *sql.DB, c Contact) error {
	_, err := db.Exec(`INSERT INTO contacts (peer_id, display_name, ed25519_public_key, x25519_public_key, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET display_name = excluded.display_name,
			ed25519_public_key = excluded.ed25519_public_key, x25519_public_key = excluded.x25519_public_key`,
		c.PeerID, c.DisplayName, c.Ed25519PublicKey, c.X25519PublicKey, c.AddedAt)
	if err != nil {
		return fmt.Errorf("store: upsert contact: %w", err)
	}
	return nil
}

// GetContact fetches a contact by peer ID.
func GetContact(db *sql.DB, peerID string) (Contact, bool, error) {
	var c Contact
	row := db.QueryRow(`SELECT peer_id, display_name, ed25519_public_key, x25519_public_key, added_at FROM contacts WHERE peer_id = ?`, peerID)
	err := row.Scan(&c.PeerID, &c.DisplayName, &c.Ed25519PublicKey, &c.X25519PublicKey, &c.AddedAt)
	if err == sql.ErrNoRows {
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, fmt.Errorf("store: get contact: %w", err)
	}
	return c, true, nil
}
