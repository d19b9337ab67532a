// Package identity implements Harbor's single local-identity service
// (spec §4.3): at most one Ed25519/X25519 keypair lives on a node,
// encrypted at rest under a passphrase, unlocked into memory on demand
// and held behind a poison-recovering lock so a panicking signer can
// never leave the cache in a torn state.
//
// Grounded on core/wallet.go's keyfile-on-disk pattern (load/unlock/
// lock around a single wallet) and internal/harborsync.PoisonRWMutex for
// the in-memory secret guard.
package identity

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/curve25519"

	"github.com/bakobiibizo/harbor/internal/cryptocore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/harborlog"
	"github.com/bakobiibizo/harbor/internal/harborsync"
)

const keystoreFileName = "identity.keystore"

type unlockedSecrets struct {
	edPriv ed25519.PrivateKey
	edPub  ed25519.PublicKey
	xPriv  [cryptocore.KeySize]byte
	xPub   [cryptocore.KeySize]byte
	peerID string
}

// Service is the node's local identity. Zero value is not usable; use
// New.
type Service struct {
	dataDir string
	mu      harborsync.PoisonRWMutex
	secrets *unlockedSecrets
}

// New returns an identity service rooted at dataDir. dataDir is created
// if missing.
func New(dataDir string) (*Service, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	return &Service{dataDir: dataDir}, nil
}

func (s *Service) keystorePath() string {
	return filepath.Join(s.dataDir, keystoreFileName)
}

// HasIdentity reports whether a keystore file already exists on disk.
func (s *Service) HasIdentity() bool {
	_, err := os.Stat(s.keystorePath())
	return err == nil
}

// Create generates a fresh Ed25519/X25519 keypair, encrypts it under
// passphrase, writes it to disk, and unlocks it into memory. It fails
// with ErrIdentityExists if a keystore is already present (spec §4.3,
// at most one identity per node).
func (s *Service) Create(passphrase string) (peerID string, err error) {
	if s.HasIdentity() {
		return "", ErrIdentityExists
	}
	edPub, edPriv, err := cryptocore.GenerateEd25519()
	if err != nil {
		return "", fmt.Errorf("identity: create: %w", err)
	}
	xPriv, xPub, err := cryptocore.GenerateX25519()
	if err != nil {
		return "", fmt.Errorf("identity: create: %w", err)
	}
	blob, err := cryptocore.EncryptKeystore(edPriv, xPriv, passphrase)
	if err != nil {
		return "", fmt.Errorf("identity: encrypt keystore: %w", err)
	}
	if err := os.WriteFile(s.keystorePath(), blob, 0o600); err != nil {
		return "", fmt.Errorf("identity: write keystore: %w", err)
	}
	pid, err := cryptocore.DerivePeerID(edPub)
	if err != nil {
		return "", fmt.Errorf("identity: derive peer id: %w", err)
	}

	err = s.mu.Write(func() error {
		s.secrets = &unlockedSecrets{edPriv: edPriv, edPub: edPub, xPriv: xPriv, xPub: xPub, peerID: pid}
		return nil
	})
	if err != nil {
		return "", err
	}
	harborlog.With("identity").Infof("created identity %s", pid)
	return pid, nil
}

// Unlock reads the on-disk keystore and decrypts it under passphrase
// into memory. Returns ErrIdentityMissing if no keystore exists, or
// ErrBadPassphrase if decryption fails.
func (s *Service) Unlock(passphrase string) error {
	blob, err := os.ReadFile(s.keystorePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrIdentityMissing
		}
		return fmt.Errorf("identity: read keystore: %w", err)
	}
	edPriv, xPriv, err := cryptocore.DecryptKeystore(blob, passphrase)
	if err != nil {
		return ErrBadPassphrase
	}
	edPub := edPriv.Public().(ed25519.PublicKey)
	var xPub [cryptocore.KeySize]byte
	curve25519.ScalarBaseMult(&xPub, &xPriv)
	pid, err := cryptocore.DerivePeerID(edPub)
	if err != nil {
		return fmt.Errorf("identity: derive peer id: %w", err)
	}

	return s.mu.Write(func() error {
		s.secrets = &unlockedSecrets{edPriv: edPriv, edPub: edPub, xPriv: xPriv, xPub: xPub, peerID: pid}
		return nil
	})
}

// Lock wipes the in-memory secret cache. Subsequent Sign/PeerID calls
// return ErrIdentityLocked until Unlock is called again.
func (s *Service) Lock() {
	_ = s.mu.Write(func() error {
		if s.secrets != nil {
			for i := range s.secrets.edPriv {
				s.secrets.edPriv[i] = 0
			}
			s.secrets.xPriv = [cryptocore.KeySize]byte{}
		}
		s.secrets = nil
		return nil
	})
	harborlog.With("identity").Info("identity locked")
}

// PeerID returns the node's libp2p peer ID, failing if locked.
func (s *Service) PeerID() (string, error) {
	var pid string
	err := s.mu.Read(func() error {
		if s.secrets == nil {
			return ErrIdentityLocked
		}
		pid = s.secrets.peerID
		return nil
	})
	return pid, err
}

// PublicKey returns the Ed25519 public key, failing if locked.
func (s *Service) PublicKey() (ed25519.PublicKey, error) {
	var pub ed25519.PublicKey
	err := s.mu.Read(func() error {
		if s.secrets == nil {
			return ErrIdentityLocked
		}
		pub = s.secrets.edPub
		return nil
	})
	return pub, err
}

// X25519KeyPair returns the unlocked X25519 keypair used for DH key
// agreement.
func (s *Service) X25519KeyPair() (secret, public [cryptocore.KeySize]byte, err error) {
	err = s.mu.Read(func() error {
		if s.secrets == nil {
			return ErrIdentityLocked
		}
		secret = s.secrets.xPriv
		public = s.secrets.xPub
		return nil
	})
	return secret, public, err
}

// Sign signs an envelope.Signable with the unlocked Ed25519 key.
func (s *Service) Sign(obj envelope.Signable) ([]byte, error) {
	var sig []byte
	err := s.mu.Read(func() error {
		if s.secrets == nil {
			return ErrIdentityLocked
		}
		var signErr error
		sig, signErr = envelope.Sign(s.secrets.edPriv, obj)
		return signErr
	})
	return sig, err
}

// SignRaw signs arbitrary bytes directly, bypassing the envelope
// domain-separation machinery, for data that has no Signable object.
func (s *Service) SignRaw(data []byte) ([]byte, error) {
	var sig []byte
	err := s.mu.Read(func() error {
		if s.secrets == nil {
			return ErrIdentityLocked
		}
		sig = cryptocore.Sign(s.secrets.edPriv, data)
		return nil
	})
	return sig, err
}

// IsUnlocked reports whether the identity is currently unlocked.
func (s *Service) IsUnlocked() bool {
	unlocked := false
	_ = s.mu.Read(func() error {
		unlocked = s.secrets != nil
		return nil
	})
	return unlocked
}
