package cryptocore

import (
	"bytes"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("canonical cbor bytes")
	sig := Sign(priv, msg)
	if !Verify(pub, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(pub, []byte("tampered"), sig) {
		t.Fatalf("expected tampered message to fail verification")
	}
}

func TestDerivePeerIDStable(t *testing.T) {
	pub, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id1, err := DerivePeerID(pub)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	id2, err := DerivePeerID(pub)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("peer id derivation is not stable: %s != %s", id1, id2)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	edPub, edPriv, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate ed25519: %v", err)
	}
	_ = edPub
	_, xPub, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate x25519: %v", err)
	}
	_ = xPub
	var xPriv [KeySize]byte
	copy(xPriv[:], bytes.Repeat([]byte{0x42}, KeySize))

	blob, err := EncryptKeystore(edPriv, xPriv, "correct horse battery staple")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	gotEd, gotX, err := DecryptKeystore(blob, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(gotEd, edPriv) {
		t.Fatalf("ed25519 private key mismatch")
	}
	if gotX != xPriv {
		t.Fatalf("x25519 private key mismatch")
	}

	if _, _, err := DecryptKeystore(blob, "wrong passphrase"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestConversationKeySymmetric(t *testing.T) {
	aSecret, aPublic, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	bSecret, bPublic, err := GenerateX25519()
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}

	sharedA, err := X25519DH(aSecret, bPublic)
	if err != nil {
		t.Fatalf("dh a: %v", err)
	}
	sharedB, err := X25519DH(bSecret, aPublic)
	if err != nil {
		t.Fatalf("dh b: %v", err)
	}

	keyA, err := ConversationKey(sharedA, "conv-1", "peerA", "peerB")
	if err != nil {
		t.Fatalf("key a: %v", err)
	}
	keyB, err := ConversationKey(sharedB, "conv-1", "peerB", "peerA")
	if err != nil {
		t.Fatalf("key b: %v", err)
	}
	if keyA != keyB {
		t.Fatalf("conversation key is not symmetric")
	}
}

func TestEncryptDecryptWithCounter(t *testing.T) {
	var key [KeySize]byte
	copy(key[:], bytes.Repeat([]byte{0x07}, KeySize))

	plaintext := []byte("hello bob")
	ct, err := EncryptMessageWithCounter(key, plaintext, 7)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := DecryptMessageWithCounter(key, ct, 7)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("plaintext mismatch")
	}
	if _, err := DecryptMessageWithCounter(key, ct, 8); err == nil {
		t.Fatalf("expected wrong counter to fail decryption")
	}
}
