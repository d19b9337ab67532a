package identity

import "errors"

// Fault enumerates the identity-layer error taxonomy of spec §7.
var (
	ErrIdentityMissing  = errors.New("identity: no identity on this node")
	ErrIdentityExists   = errors.New("identity: identity already exists")
	ErrIdentityLocked   = errors.New("identity: identity is locked")
	ErrBadPassphrase    = errors.New("identity: bad passphrase")
)
