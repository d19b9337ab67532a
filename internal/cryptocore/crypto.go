// Package cryptocore implements Harbor's crypto primitives (spec §4.1):
// Ed25519 signing, X25519 key agreement, an Argon2id-protected keystore
// blob, AES-256-GCM with counter-derived nonces, and the one canonical
// peer-ID derivation shared by the identity service and the transport
// layer.
//
// Grounded on the teacher's golang.org/x/crypto dependency and
// core/wallet.go's key-handling style, and on the X25519/HKDF pattern in
// other_examples' postalsys-Muti-Metroo internal/crypto/crypto.go and
// gosuda-portal's handshaker.go.
package cryptocore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the byte length of X25519/AES-256 keys.
	KeySize = 32
	// NonceSize is the byte length of AES-GCM nonces.
	NonceSize = 12
	// EdSignatureSize is the byte length of an Ed25519 signature.
	EdSignatureSize = ed25519.SignatureSize

	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltLen      = 16
)

// GenerateEd25519 creates a fresh signing keypair.
func GenerateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptocore: generate ed25519: %w", err)
	}
	return pub, priv, nil
}

// GenerateX25519 creates a fresh X25519 key-agreement keypair. The
// private scalar is clamped per RFC 7748 as shown in
// other_examples/postalsys-Muti-Metroo's GenerateEphemeralKeypair.
func GenerateX25519() (secret, public [KeySize]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, secret[:]); err != nil {
		return secret, public, fmt.Errorf("cryptocore: generate x25519: %w", err)
	}
	secret[0] &= 248
	secret[31] &= 127
	secret[31] |= 64
	curve25519.ScalarBaseMult(&public, &secret)
	return secret, public, nil
}

// Sign produces a 64-byte Ed25519 signature over bytes.
func Sign(signingKey ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(signingKey, data)
}

// Verify checks an Ed25519 signature.
func Verify(verifyingKey ed25519.PublicKey, data, sig []byte) bool {
	if len(verifyingKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(verifyingKey, data, sig)
}

// DerivePeerID computes the one canonical, stable textual peer ID for an
// Ed25519 public key: the multihash of the protobuf-encoded public key,
// exactly as libp2p's own peer.IDFromPublicKey derives it. Per the spec's
// Open Question (§9), this is the ONLY derivation path in production
// code — the identity service calls this function, and the transport
// layer's libp2p host derives its ID through the same
// peer.IDFromPublicKey, so the two paths can never diverge.
func DerivePeerID(pub ed25519.PublicKey) (string, error) {
	lp2pPub, err := libp2pcrypto.UnmarshalEd25519PublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("cryptocore: unmarshal ed25519 pubkey: %w", err)
	}
	id, err := peer.IDFromPublicKey(lp2pPub)
	if err != nil {
		return "", fmt.Errorf("cryptocore: derive peer id: %w", err)
	}
	return id.String(), nil
}

// EncryptKeystore protects an identity's two private keys with a
// passphrase. Layout mirrors the original Rust CryptoService exactly:
// salt_len(1) || salt || nonce(12) || ciphertext, where ciphertext is
// AES-256-GCM over a length-prefixed {ed25519_private, x25519_private}
// envelope and the AES key is the first 32 bytes of an Argon2id hash of
// the passphrase under the random salt.
func EncryptKeystore(edPriv ed25519.PrivateKey, xPriv [KeySize]byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("cryptocore: salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptocore: nonce: %w", err)
	}

	plaintext := encodeKeyEnvelope(edPriv, xPriv[:])
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, byte(len(salt)))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptKeystore inverts EncryptKeystore. A wrong passphrase and a
// corrupted blob both surface as ErrBadPassphrase — the API deliberately
// does not distinguish the two (spec §4.1).
func DecryptKeystore(blob []byte, passphrase string) (edPriv ed25519.PrivateKey, xPriv [KeySize]byte, err error) {
	if len(blob) < 1 {
		return nil, xPriv, fmt.Errorf("%w: empty blob", ErrBadPassphrase)
	}
	saltLen := int(blob[0])
	if len(blob) < 1+saltLen+NonceSize {
		return nil, xPriv, fmt.Errorf("%w: truncated blob", ErrBadPassphrase)
	}
	salt := blob[1 : 1+saltLen]
	nonce := blob[1+saltLen : 1+saltLen+NonceSize]
	ciphertext := blob[1+saltLen+NonceSize:]

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, xPriv, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xPriv, fmt.Errorf("cryptocore: gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, xPriv, fmt.Errorf("%w", ErrBadPassphrase)
	}
	edPriv, xPrivSlice, err := decodeKeyEnvelope(plaintext)
	if err != nil {
		return nil, xPriv, fmt.Errorf("%w: %v", ErrBadPassphrase, err)
	}
	copy(xPriv[:], xPrivSlice)
	return edPriv, xPriv, nil
}

// encodeKeyEnvelope / decodeKeyEnvelope serialize the keystore's inner
// {ed25519_private, x25519_private} pair as two length-prefixed blobs,
// the Go-idiomatic equivalent of the original's self-describing JSON
// envelope, without pulling in a JSON dependency for two fixed-size
// byte slices.
func encodeKeyEnvelope(edPriv ed25519.PrivateKey, xPriv []byte) []byte {
	out := make([]byte, 0, 4+len(edPriv)+4+len(xPriv))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(edPriv)))
	out = append(out, lenBuf[:]...)
	out = append(out, edPriv...)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(xPriv)))
	out = append(out, lenBuf[:]...)
	out = append(out, xPriv...)
	return out
}

func decodeKeyEnvelope(data []byte) (ed25519.PrivateKey, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated envelope")
	}
	edLen := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < edLen+4 {
		return nil, nil, fmt.Errorf("truncated ed25519 key")
	}
	edPriv := ed25519.PrivateKey(append([]byte(nil), data[:edLen]...))
	data = data[edLen:]
	xLen := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < xLen {
		return nil, nil, fmt.Errorf("truncated x25519 key")
	}
	xPriv := append([]byte(nil), data[:xLen]...)
	return edPriv, xPriv, nil
}

// X25519DH performs the Diffie-Hellman key agreement.
func X25519DH(secret, public [KeySize]byte) ([KeySize]byte, error) {
	var shared [KeySize]byte
	out, err := curve25519.X25519(secret[:], public[:])
	if err != nil {
		return shared, fmt.Errorf("cryptocore: x25519 dh: %w", err)
	}
	copy(shared[:], out)
	var zero [KeySize]byte
	if shared == zero {
		return shared, fmt.Errorf("cryptocore: low-order dh result")
	}
	return shared, nil
}

// ConversationKey derives the shared symmetric key for a conversation
// between two peers, order-independent by construction: the HKDF salt
// sorts the peer IDs before formatting, so either party derives the same
// key regardless of who is "a" and who is "b" (spec §4.1, property P5).
func ConversationKey(sharedSecret [KeySize]byte, conversationID, peerA, peerB string) ([KeySize]byte, error) {
	first, second := peerA, peerB
	if second < first {
		first, second = second, first
	}
	salt := fmt.Sprintf("harbor:v1:conv:%s:%s:%s", conversationID, first, second)
	hk := hkdf.New(sha256.New, sharedSecret[:], []byte(salt), []byte("conversation-key"))
	var key [KeySize]byte
	if _, err := io.ReadFull(hk, key[:]); err != nil {
		return key, fmt.Errorf("cryptocore: hkdf expand: %w", err)
	}
	return key, nil
}

// NonceFromCounter builds the 12-byte deterministic AES-GCM nonce used
// for counter-addressed message encryption: 4 reserved zero bytes
// followed by the big-endian 8-byte counter.
func NonceFromCounter(counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// EncryptMessageWithCounter AES-256-GCM-encrypts plaintext under key
// using the deterministic nonce derived from counter. The counter itself
// travels as a separate signed field, never re-derived from the
// ciphertext (spec §4.1).
func EncryptMessageWithCounter(key [KeySize]byte, plaintext []byte, counter uint64) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: gcm: %w", err)
	}
	nonce := NonceFromCounter(counter)
	return gcm.Seal(nil, nonce[:], plaintext, nil), nil
}

// DecryptMessageWithCounter inverts EncryptMessageWithCounter.
func DecryptMessageWithCounter(key [KeySize]byte, ciphertext []byte, counter uint64) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyLength, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: gcm: %w", err)
	}
	nonce := NonceFromCounter(counter)
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w", ErrBadMac)
	}
	return plaintext, nil
}

// SHA256 hashes data, used by the media store's content addressing.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
