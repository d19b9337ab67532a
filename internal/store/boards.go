package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BoardPost is a materialized row of board_posts (relay-hosted
// community boards, spec §4.10).
type BoardPost struct {
	PostID       string
	BoardID      string
	Author       string
	ContentType  string
	ContentText  *string
	LamportClock uint64
	CreatedAt    int64
	Deleted      bool
}

// ErrStaleClock is returned when a relay submit's lamport_clock is not
// strictly greater than the submitting author's last-seen clock on this
// relay (spec §4.10 step 4, §7).
var ErrStaleClock = errors.New("store: stale clock")

// InsertBoardPost appends a new board post, used for seeding/testing
// where the caller already owns a transaction and the clock-monotonicity
// check has been performed elsewhere. Relay submission goes through
// InsertBoardPostAtomic instead.
func InsertBoardPost(tx *sql.Tx, p BoardPost) error {
	_, err := tx.Exec(`INSERT INTO board_posts (post_id, board_id, author, content_type, content_text, lamport_clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, p.PostID, p.BoardID, p.Author, p.ContentType, p.ContentText, p.LamportClock, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert board post: %w", err)
	}
	return nil
}

// InsertBoardPostAtomic is the relay submit path (spec §4.10 step 4): in
// a single BEGIN IMMEDIATE transaction it reads the author's
// highest-seen clock on this relay, rejects with ErrStaleClock if
// incoming <= last seen, inserts the post, and advances the watermark.
// BEGIN IMMEDIATE takes the write lock up front so two concurrent
// submissions from the same author can never both pass the clock check
// against a stale read.
func InsertBoardPostAtomic(db *sql.DB, p BoardPost) error {
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: insert board post: get conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("store: insert board post: begin immediate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, `ROLLBACK`)
		}
	}()

	var lastSeen uint64
	err = conn.QueryRowContext(ctx, `SELECT highest_seen_clock FROM author_lamport_clocks WHERE author = ?`, p.Author).Scan(&lastSeen)
	switch {
	case err == sql.ErrNoRows:
		lastSeen = 0
	case err != nil:
		return fmt.Errorf("store: insert board post: lookup clock: %w", err)
	}
	if p.LamportClock <= lastSeen {
		return fmt.Errorf("%w: author %s submitted %d, last seen %d", ErrStaleClock, p.Author, p.LamportClock, lastSeen)
	}

	if _, err := conn.ExecContext(ctx, `INSERT INTO board_posts (post_id, board_id, author, content_type, content_text, lamport_clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, p.PostID, p.BoardID, p.Author, p.ContentType, p.ContentText, p.LamportClock, p.CreatedAt); err != nil {
		return fmt.Errorf("store: insert board post: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO author_lamport_clocks (author, highest_seen_clock) VALUES (?, ?)
		ON CONFLICT(author) DO UPDATE SET highest_seen_clock = excluded.highest_seen_clock`, p.Author, p.LamportClock); err != nil {
		return fmt.Errorf("store: insert board post: advance clock: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("store: insert board post: commit: %w", err)
	}
	committed = true
	return nil
}

// MarkBoardPostDeleted tombstones a board post.
func MarkBoardPostDeleted(tx *sql.Tx, postID string, lamportClock uint64) error {
	_, err := tx.Exec(`UPDATE board_posts SET deleted = 1, lamport_clock = ? WHERE post_id = ? AND lamport_clock < ?`, lamportClock, postID, lamportClock)
	if err != nil {
		return fmt.Errorf("store: mark board post deleted: %w", err)
	}
	return nil
}

// ListBoardPosts returns a page of posts for boardID older than
// beforeClock, newest first (spec §4.10 BoardPostsRequest).
func ListBoardPosts(db *sql.DB, boardID string, beforeClock uint64, limit int) ([]BoardPost, error) {
	rows, err := db.Query(`SELECT post_id, board_id, author, content_type, content_text, lamport_clock, created_at, deleted
		FROM board_posts WHERE board_id = ? AND lamport_clock < ? AND deleted = 0 ORDER BY lamport_clock DESC LIMIT ?`, boardID, beforeClock, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list board posts: %w", err)
	}
	defer rows.Close()
	var out []BoardPost
	for rows.Next() {
		var p BoardPost
		if err := rows.Scan(&p.PostID, &p.BoardID, &p.Author, &p.ContentType, &p.ContentText, &p.LamportClock, &p.CreatedAt, &p.Deleted); err != nil {
			return nil, fmt.Errorf("store: scan board post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListBoards returns every board a relay hosts.
func ListBoards(db *sql.DB, relayPeerID string) ([]string, error) {
	rows, err := db.Query(`SELECT board_id FROM boards WHERE relay_peer_id = ?`, relayPeerID)
	if err != nil {
		return nil, fmt.Errorf("store: list boards: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan board: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateBoard registers a new board on a relay.
func CreateBoard(db *sql.DB, boardID, relayPeerID, name string, createdAt int64) error {
	_, err := db.Exec(`INSERT INTO boards (board_id, relay_peer_id, name, created_at) VALUES (?, ?, ?, ?)`, boardID, relayPeerID, name, createdAt)
	if err != nil {
		return fmt.Errorf("store: create board: %w", err)
	}
	return nil
}
