// Package envelope implements Harbor's signable envelope (spec §4.2):
// every signed object serializes a fixed, ordered field tuple to
// canonical CBOR before Ed25519 signing. The verifier rebuilds the same
// tuple from the received message and re-encodes it, so two honest
// parties always compute bit-identical bytes.
//
// Canonical CBOR is produced with fxamacker/cbor/v2's canonical encoding
// mode (definite-length containers, minimal integers). Fields are
// ordered CBOR arrays rather than maps, which sidesteps map-key-sorting
// ambiguity entirely — the same choice the spec recommends in §4.2.
//
// Grounded on other_examples/alxspiker-AlxNet's internal/p2p/node.go,
// which signs canonical-CBOR-encoded records (UpdateRecord/DeleteRecord)
// before gossiping them.
package envelope

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bakobiibizo/harbor/internal/cryptocore"
)

var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("envelope: build canonical encoder: %v", err))
	}
	encMode = mode
}

// Signable is implemented by every signed object kind named in spec
// §4.2. Fields returns the values that SignableBytes encodes for
// signing; DomainTag prevents cross-type signature confusion between
// e.g. Post and PostUpdate.
type Signable interface {
	DomainTag() string
	Fields() []any
}

// SignableBytes builds the domain-separated, canonical-CBOR-encoded
// payload for s: SHA-256("harbor:v1:<tag>:") prefix bytes followed by
// the canonical CBOR array of s.Fields(). The domain prefix is hashed
// rather than concatenated raw so every signed payload has a constant
// 32-byte header regardless of tag length.
func SignableBytes(s Signable) ([]byte, error) {
	domainHash := sha256.Sum256([]byte("harbor:v1:" + s.DomainTag() + ":"))
	body, err := encMode.Marshal(s.Fields())
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal fields for %s: %w", s.DomainTag(), err)
	}
	out := make([]byte, 0, len(domainHash)+len(body))
	out = append(out, domainHash[:]...)
	out = append(out, body...)
	return out, nil
}

// Sign signs s with signingKey, returning the 64-byte Ed25519 signature
// over SignableBytes(s).
func Sign(signingKey ed25519.PrivateKey, s Signable) ([]byte, error) {
	data, err := SignableBytes(s)
	if err != nil {
		return nil, err
	}
	return cryptocore.Sign(signingKey, data), nil
}

// Verify checks sig against s under verifyingKey.
func Verify(verifyingKey ed25519.PublicKey, s Signable, sig []byte) (bool, error) {
	data, err := SignableBytes(s)
	if err != nil {
		return false, err
	}
	return cryptocore.Verify(verifyingKey, data, sig), nil
}
