// Package dm implements Harbor's direct-message flow (spec §4.8):
// X25519-derived per-conversation encryption, counter-derived AES-GCM
// nonces, and the replay-before-decrypt ordering that keeps a forged
// nonce from ever reaching the cipher.
//
// Grounded on the original Rust DM service
// (original_source/src-tauri/src/services/message_service.rs) for the
// "[decryption failed]" placeholder behavior, and on
// core/wallet.go's transactional error-wrapping style.
package dm

import (
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/cryptocore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/permission"
	"github.com/bakobiibizo/harbor/internal/store"
)

// decryptionFailedPlaceholder is substituted for content the recipient
// cannot decrypt (corrupted ciphertext, key mismatch after a contact
// re-key) so a feed render never simply drops the message.
const decryptionFailedPlaceholder = "[decryption failed]"

// Service drives the DM send/receive flow for one local identity.
type Service struct {
	db       *sql.DB
	identity *identity.Service
	clocks   *clockstore.Store
	perm     *permission.Engine
}

// New builds a DM service.
func New(db *sql.DB, id *identity.Service, clocks *clockstore.Store, perm *permission.Engine) *Service {
	return &Service{db: db, identity: id, clocks: clocks, perm: perm}
}

func conversationKeyWith(id *identity.Service, conversationID, localPeerID, remotePeerID string, remoteXPub [cryptocore.KeySize]byte) ([cryptocore.KeySize]byte, error) {
	localSecret, _, err := id.X25519KeyPair()
	if err != nil {
		return [cryptocore.KeySize]byte{}, err
	}
	shared, err := cryptocore.X25519DH(localSecret, remoteXPub)
	if err != nil {
		return [cryptocore.KeySize]byte{}, fmt.Errorf("dm: derive shared secret: %w", err)
	}
	return cryptocore.ConversationKey(shared, conversationID, localPeerID, remotePeerID)
}

// Send encrypts plaintext for recipient, signs the resulting
// DirectMessage, persists it, and returns the signed envelope ready for
// transport.
func (s *Service) Send(messageID, conversationID, recipientPeerID, contentType string, plaintext []byte, replyTo *string, now time.Time) (envelope.DirectMessage, []byte, error) {
	localPeerID, err := s.identity.PeerID()
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	if err := s.perm.RequireCapability(recipientPeerID, permission.CapChat, now); err != nil {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: send: %w", err)
	}
	contact, ok, err := store.GetContact(s.db, recipientPeerID)
	if err != nil {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: send: %w", err)
	}
	if !ok {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: send: unknown recipient %s", recipientPeerID)
	}
	var remoteXPub [cryptocore.KeySize]byte
	copy(remoteXPub[:], contact.X25519PublicKey)

	key, err := conversationKeyWith(s.identity, conversationID, localPeerID, recipientPeerID, remoteXPub)
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	counter, err := s.clocks.NextSendCounter(conversationID)
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	ciphertext, err := cryptocore.EncryptMessageWithCounter(key, plaintext, counter)
	if err != nil {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: encrypt: %w", err)
	}
	clock, err := s.clocks.NextLamportClock(localPeerID)
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}

	msg := envelope.DirectMessage{
		MessageID:         messageID,
		ConversationID:    conversationID,
		Sender:            localPeerID,
		Recipient:         recipientPeerID,
		ContentCiphertext: ciphertext,
		ContentType:       contentType,
		ReplyTo:           replyTo,
		NonceCounter:      counter,
		LamportClock:      clock,
		SentAt:            now.Unix(),
	}
	sig, err := s.identity.Sign(msg)
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: send: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.InsertMessage(tx, store.Message{
		MessageID: msg.MessageID, ConversationID: msg.ConversationID, Sender: msg.Sender, Recipient: msg.Recipient,
		ContentCiphertext: msg.ContentCiphertext, ContentType: msg.ContentType, ReplyTo: msg.ReplyTo,
		NonceCounter: msg.NonceCounter, LamportClock: msg.LamportClock, SentAt: msg.SentAt,
	}); err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	payload, err := envelope.SignableBytes(msg)
	if err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	if err := store.RecordMessageEvent(tx, msg.MessageID, msg.ConversationID, "send", payload, sig, msg.LamportClock, now.Unix()); err != nil {
		return envelope.DirectMessage{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.DirectMessage{}, nil, fmt.Errorf("dm: send: commit: %w", err)
	}
	return msg, sig, nil
}

// Receive verifies and decrypts an inbound DirectMessage. The nonce
// replay check runs before decryption is attempted: a replayed
// (sender, conversation, counter) tuple is rejected outright rather
// than decrypted and discarded, so an attacker cannot use decryption
// timing or error shape as an oracle.
func (s *Service) Receive(senderPubKey ed25519.PublicKey, msg envelope.DirectMessage, sig []byte, now time.Time) (plaintext []byte, err error) {
	verified, err := envelope.Verify(senderPubKey, msg, sig)
	if err != nil {
		return nil, fmt.Errorf("dm: receive: verify: %w", err)
	}
	if !verified {
		return nil, fmt.Errorf("dm: receive: invalid signature")
	}

	if err := s.clocks.CheckAndRecordNonce(msg.Sender, msg.ConversationID, msg.NonceCounter, now.Unix()); err != nil {
		return nil, err
	}
	if err := s.clocks.ObserveLamportClock(msg.Sender, msg.LamportClock); err != nil {
		return nil, err
	}

	localPeerID, err := s.identity.PeerID()
	if err != nil {
		return nil, err
	}
	contact, ok, err := store.GetContact(s.db, msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("dm: receive: %w", err)
	}
	if ok {
		var senderXPub [cryptocore.KeySize]byte
		copy(senderXPub[:], contact.X25519PublicKey)
		key, kErr := conversationKeyWith(s.identity, msg.ConversationID, localPeerID, msg.Sender, senderXPub)
		if kErr == nil {
			if pt, dErr := cryptocore.DecryptMessageWithCounter(key, msg.ContentCiphertext, msg.NonceCounter); dErr == nil {
				plaintext = pt
			}
		}
	}
	ciphertextToStore := msg.ContentCiphertext

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("dm: receive: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.InsertMessage(tx, store.Message{
		MessageID: msg.MessageID, ConversationID: msg.ConversationID, Sender: msg.Sender, Recipient: msg.Recipient,
		ContentCiphertext: ciphertextToStore, ContentType: msg.ContentType, ReplyTo: msg.ReplyTo,
		NonceCounter: msg.NonceCounter, LamportClock: msg.LamportClock, SentAt: msg.SentAt,
	}); err != nil {
		return nil, err
	}
	payload, err := envelope.SignableBytes(msg)
	if err != nil {
		return nil, err
	}
	if err := store.RecordMessageEvent(tx, msg.MessageID, msg.ConversationID, "receive", payload, sig, msg.LamportClock, now.Unix()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dm: receive: commit: %w", err)
	}
	if plaintext == nil {
		return []byte(decryptionFailedPlaceholder), nil
	}
	return plaintext, nil
}

// Edit re-encrypts and re-signs an existing message's content,
// advancing its nonce counter and lamport clock as a normal send would.
func (s *Service) Edit(messageID, conversationID, recipientPeerID string, plaintext []byte, now time.Time) (envelope.EditMessage, []byte, error) {
	localPeerID, err := s.identity.PeerID()
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}
	contact, ok, err := store.GetContact(s.db, recipientPeerID)
	if err != nil {
		return envelope.EditMessage{}, nil, fmt.Errorf("dm: edit: %w", err)
	}
	if !ok {
		return envelope.EditMessage{}, nil, fmt.Errorf("dm: edit: unknown recipient %s", recipientPeerID)
	}
	var remoteXPub [cryptocore.KeySize]byte
	copy(remoteXPub[:], contact.X25519PublicKey)
	key, err := conversationKeyWith(s.identity, conversationID, localPeerID, recipientPeerID, remoteXPub)
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}
	counter, err := s.clocks.NextSendCounter(conversationID)
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}
	ciphertext, err := cryptocore.EncryptMessageWithCounter(key, plaintext, counter)
	if err != nil {
		return envelope.EditMessage{}, nil, fmt.Errorf("dm: edit: encrypt: %w", err)
	}
	clock, err := s.clocks.NextLamportClock(localPeerID)
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}
	edit := envelope.EditMessage{
		MessageID: messageID, ConversationID: conversationID, Sender: localPeerID,
		NewCiphertext: ciphertext, NonceCounter: counter, LamportClock: clock, EditedAt: now.Unix(),
	}
	sig, err := s.identity.Sign(edit)
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return envelope.EditMessage{}, nil, fmt.Errorf("dm: edit: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.ApplyMessageEdit(tx, messageID, ciphertext, edit.EditedAt); err != nil {
		return envelope.EditMessage{}, nil, err
	}
	payload, err := envelope.SignableBytes(edit)
	if err != nil {
		return envelope.EditMessage{}, nil, err
	}
	if err := store.RecordMessageEvent(tx, messageID, conversationID, "edit", payload, sig, clock, now.Unix()); err != nil {
		return envelope.EditMessage{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.EditMessage{}, nil, fmt.Errorf("dm: edit: commit: %w", err)
	}
	return edit, sig, nil
}
