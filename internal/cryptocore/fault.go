package cryptocore

import "errors"

// Fault enumerates the crypto-layer error taxonomy of spec §4.1/§7. Every
// failure out of this package is one of these sentinels, wrapped with
// fmt.Errorf("...: %w", ...) by the caller the way the teacher's core
// package wraps errors throughout (core/network.go, core/wallet.go).
var (
	ErrBadSignature  = errors.New("cryptocore: bad signature")
	ErrBadMac        = errors.New("cryptocore: bad mac")
	ErrBadPassphrase = errors.New("cryptocore: bad passphrase")
	ErrBadKeyLength  = errors.New("cryptocore: bad key length")
	ErrBadNonce      = errors.New("cryptocore: bad nonce")
)

// IsCryptoFault reports whether err is one of this package's sentinels.
func IsCryptoFault(err error) bool {
	switch {
	case errors.Is(err, ErrBadSignature),
		errors.Is(err, ErrBadMac),
		errors.Is(err, ErrBadPassphrase),
		errors.Is(err, ErrBadKeyLength),
		errors.Is(err, ErrBadNonce):
		return true
	default:
		return false
	}
}
