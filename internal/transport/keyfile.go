package transport

import (
	"fmt"
	"os"

	"github.com/libp2p/go-libp2p/core/crypto"
)

// LoadOrCreateIdentity loads a protobuf-encoded libp2p private key from
// path, generating and persisting a fresh Ed25519 key if the file is
// absent (spec §6: "Identity key on disk (bootstrap/relay): protobuf-
// encoded keypair at a configurable path; generated if absent"). This
// is the long-lived libp2p host identity for a bootstrap or relay node,
// distinct from internal/identity's content-signing keystore used by
// full clients.
func LoadOrCreateIdentity(path string) (crypto.PrivKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := crypto.UnmarshalPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("transport: unmarshal identity key: %w", err)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("transport: read identity key: %w", err)
	}

	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: generate identity key: %w", err)
	}
	encoded, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal identity key: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return nil, fmt.Errorf("transport: write identity key: %w", err)
	}
	return priv, nil
}
