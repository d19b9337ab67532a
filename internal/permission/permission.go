// Package permission implements Harbor's capability grant engine (spec
// §4.7): a closed enumeration of capabilities and grant/revoke validity
// checks.
//
// Grounded on core/wallet.go's simple closed-enum validation style and
// the original Rust permission model in
// original_source/src-tauri/src/services/permission_service.rs.
package permission

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/store"
)

// Capability is a closed enumeration of grantable capabilities.
type Capability string

const (
	CapChat     Capability = "chat"
	CapWallRead Capability = "wall_read"
	CapCall     Capability = "call"
)

// ErrUnknownCapability is returned by ParseCapability for any string
// outside the closed enumeration.
var ErrUnknownCapability = errors.New("permission: unknown capability")

// ErrPermissionDenied is returned when a subject lacks a required
// capability.
var ErrPermissionDenied = errors.New("permission: denied")

// ParseCapability validates s against the closed enumeration.
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapChat, CapWallRead, CapCall:
		return Capability(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
}

// Engine evaluates and materializes capability grants against the
// shared store.
type Engine struct {
	db *sql.DB
}

// NewEngine wraps a shared sqlite handle.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// WeHaveCapability reports whether the local node's peer ID holds cap,
// per the materialized permissions_current table.
func (e *Engine) WeHaveCapability(localPeerID string, cap Capability, now time.Time) (bool, error) {
	return store.HasCapability(e.db, localPeerID, string(cap), now.Unix())
}

// PeerHasCapability reports whether a remote peer holds cap — same
// lookup, named separately because the caller context differs (spec
// §4.7 distinguishes "do I have X" checks from "does peer Y have X").
func (e *Engine) PeerHasCapability(peerID string, cap Capability, now time.Time) (bool, error) {
	return store.HasCapability(e.db, peerID, string(cap), now.Unix())
}

// RequireCapability returns ErrPermissionDenied if subject lacks cap.
func (e *Engine) RequireCapability(subject string, cap Capability, now time.Time) error {
	ok, err := store.HasCapability(e.db, subject, string(cap), now.Unix())
	if err != nil {
		return fmt.Errorf("permission: require capability: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %s", ErrPermissionDenied, subject, cap)
	}
	return nil
}

// Grant materializes a permission grant, applying the strict
// lamport-clock tie-break rule shared with post/message updates.
func (e *Engine) Grant(g store.Grant) (applied bool, err error) {
	tx, err := e.db.Begin()
	if err != nil {
		return false, fmt.Errorf("permission: grant: begin: %w", err)
	}
	defer tx.Rollback()
	applied, err = store.UpsertGrant(tx, g)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("permission: grant: commit: %w", err)
	}
	return applied, nil
}

// Revoke materializes a revocation.
func (e *Engine) Revoke(grantID string, lamportClock uint64) (applied bool, err error) {
	tx, err := e.db.Begin()
	if err != nil {
		return false, fmt.Errorf("permission: revoke: begin: %w", err)
	}
	defer tx.Rollback()
	applied, err = store.RevokeGrant(tx, grantID, lamportClock)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("permission: revoke: commit: %w", err)
	}
	return applied, nil
}
