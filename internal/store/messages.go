package store

import (
	"database/sql"
	"fmt"
)

// Message is a materialized row of the messages table (spec §4.4/§6).
type Message struct {
	MessageID         string
	ConversationID    string
	Sender            string
	Recipient         string
	ContentCiphertext []byte
	ContentType       string
	ReplyTo           *string
	NonceCounter      uint64
	LamportClock      uint64
	SentAt            int64
	EditedAt          *int64
	Deleted           bool
}

// InsertMessage appends a new message row. Conflicts on message_id are
// rejected: messages are immutable once recorded, edits are separate
// event rows applied via ApplyMessageEdit.
func InsertMessage(tx *sql.Tx, m Message) error {
	_, err := tx.Exec(`INSERT INTO messages
		(message_id, conversation_id, sender, recipient, content_ciphertext, content_type, reply_to, nonce_counter, lamport_clock, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ConversationID, m.Sender, m.Recipient, m.ContentCiphertext, m.ContentType, m.ReplyTo, m.NonceCounter, m.LamportClock, m.SentAt)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// ApplyMessageEdit rewrites the ciphertext/edited_at of an existing
// message in place, mirroring last-writer-wins semantics applied at the
// event-application layer (spec §4.6), not here.
func ApplyMessageEdit(tx *sql.Tx, messageID string, newCiphertext []byte, editedAt int64) error {
	res, err := tx.Exec(`UPDATE messages SET content_ciphertext = ?, edited_at = ? WHERE message_id = ? AND deleted = 0`,
		newCiphertext, editedAt, messageID)
	if err != nil {
		return fmt.Errorf("store: apply message edit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: apply message edit: message %s not found", messageID)
	}
	return nil
}

// GetMessage fetches one message by ID, or sql.ErrNoRows if absent.
func GetMessage(db *sql.DB, messageID string) (Message, error) {
	var m Message
	row := db.QueryRow(`SELECT message_id, conversation_id, sender, recipient, content_ciphertext, content_type, reply_to, nonce_counter, lamport_clock, sent_at, edited_at, deleted
		FROM messages WHERE message_id = ?`, messageID)
	if err := row.Scan(&m.MessageID, &m.ConversationID, &m.Sender, &m.Recipient, &m.ContentCiphertext, &m.ContentType, &m.ReplyTo, &m.NonceCounter, &m.LamportClock, &m.SentAt, &m.EditedAt, &m.Deleted); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListConversation returns messages in a conversation ordered by
// lamport clock, for rendering a DM thread.
func ListConversation(db *sql.DB, conversationID string, limit int) ([]Message, error) {
	rows, err := db.Query(`SELECT message_id, conversation_id, sender, recipient, content_ciphertext, content_type, reply_to, nonce_counter, lamport_clock, sent_at, edited_at, deleted
		FROM messages WHERE conversation_id = ? ORDER BY lamport_clock ASC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list conversation: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MessageID, &m.ConversationID, &m.Sender, &m.Recipient, &m.ContentCiphertext, &m.ContentType, &m.ReplyTo, &m.NonceCounter, &m.LamportClock, &m.SentAt, &m.EditedAt, &m.Deleted); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordMessageEvent appends an audit row to message_events: every
// signed request that mutates a message (send, edit, ack) is recorded
// here in the same transaction that updates the materialized table, so
// the event log can always be replayed to rebuild state (spec §5).
func RecordMessageEvent(tx *sql.Tx, messageID, conversationID, eventType string, payload, signature []byte, lamportClock uint64, recordedAt int64) error {
	_, err := tx.Exec(`INSERT INTO message_events (message_id, conversation_id, event_type, payload, signature, lamport_clock, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, messageID, conversationID, eventType, payload, signature, lamportClock, recordedAt)
	if err != nil {
		return fmt.Errorf("store: record message event: %w", err)
	}
	return nil
}
