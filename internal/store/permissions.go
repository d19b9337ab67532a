package store

import (
	"database/sql"
	"fmt"
)

// Grant is a materialized row of permissions_current.
type Grant struct {
	Subject      string
	Capability   string
	Issuer       string
	GrantID      string
	Scope        *string
	LamportClock uint64
	IssuedAt     int64
	ExpiresAt    *int64
	Revoked      bool
}

// UpsertGrant replaces any existing grant for (subject, capability)
// with a newer one, applying the same strict-greater-than lamport
// tie-break as post updates.
func UpsertGrant(tx *sql.Tx, g Grant) (applied bool, err error) {
	var current uint64
	err = tx.QueryRow(`SELECT lamport_clock FROM permissions_current WHERE subject = ? AND capability = ?`, g.Subject, g.Capability).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`INSERT INTO permissions_current (subject, capability, issuer, grant_id, scope, lamport_clock, issued_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, g.Subject, g.Capability, g.Issuer, g.GrantID, g.Scope, g.LamportClock, g.IssuedAt, g.ExpiresAt)
		if err != nil {
			return false, fmt.Errorf("store: insert grant: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("store: upsert grant: lookup: %w", err)
	}
	if g.LamportClock <= current {
		return false, nil
	}
	_, err = tx.Exec(`UPDATE permissions_current SET issuer = ?, grant_id = ?, scope = ?, lamport_clock = ?, issued_at = ?, expires_at = ?, revoked = 0
		WHERE subject = ? AND capability = ?`, g.Issuer, g.GrantID, g.Scope, g.LamportClock, g.IssuedAt, g.ExpiresAt, g.Subject, g.Capability)
	if err != nil {
		return false, fmt.Errorf("store: update grant: %w", err)
	}
	return true, nil
}

// RevokeGrant marks a grant revoked if the revocation's lamport clock is
// newer than the grant's.
func RevokeGrant(tx *sql.Tx, grantID string, lamportClock uint64) (applied bool, err error) {
	res, err := tx.Exec(`UPDATE permissions_current SET revoked = 1, lamport_clock = ? WHERE grant_id = ? AND lamport_clock < ?`, lamportClock, grantID, lamportClock)
	if err != nil {
		return false, fmt.Errorf("store: revoke grant: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// HasCapability reports whether subject currently holds an
// unrevoked, unexpired grant for capability.
func HasCapability(db *sql.DB, subject, capability string, now int64) (bool, error) {
	var revoked bool
	var expiresAt *int64
	err := db.QueryRow(`SELECT revoked, expires_at FROM permissions_current WHERE subject = ? AND capability = ?`, subject, capability).Scan(&revoked, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: has capability: %w", err)
	}
	if revoked {
		return false, nil
	}
	if expiresAt != nil && *expiresAt <= now {
		return false, nil
	}
	return true, nil
}

// RecordPermissionEvent appends an audit row to permission_events.
func RecordPermissionEvent(tx *sql.Tx, grantID, eventType string, payload, signature []byte, lamportClock uint64, recordedAt int64) error {
	_, err := tx.Exec(`INSERT INTO permission_events (grant_id, event_type, payload, signature, lamport_clock, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`, grantID, eventType, payload, signature, lamportClock, recordedAt)
	if err != nil {
		return fmt.Errorf("store: record permission event: %w", err)
	}
	return nil
}
