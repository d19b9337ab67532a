package store

import (
	"database/sql"
	"fmt"
)

// Post is a materialized row of the posts table.
type Post struct {
	PostID       string
	Author       string
	ContentType  string
	ContentText  *string
	Visibility   string
	LamportClock uint64
	CreatedAt    int64
	UpdatedAt    *int64
	Deleted      bool
	MediaHashes  []string
}

// InsertPost appends a new wall post along with its media references.
func InsertPost(tx *sql.Tx, p Post) error {
	_, err := tx.Exec(`INSERT INTO posts (post_id, author, content_type, content_text, visibility, lamport_clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, p.PostID, p.Author, p.ContentType, p.ContentText, p.Visibility, p.LamportClock, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert post: %w", err)
	}
	for _, h := range p.MediaHashes {
		if _, err := tx.Exec(`INSERT INTO post_media (post_id, content_hash) VALUES (?, ?)`, p.PostID, h); err != nil {
			return fmt.Errorf("store: insert post media: %w", err)
		}
	}
	return nil
}

// ApplyPostUpdate applies a last-writer-wins edit if lamportClock is
// strictly greater than the post's current clock (spec §4.6 tie-break
// rule: ties keep the existing value, never overwrite).
func ApplyPostUpdate(tx *sql.Tx, postID string, contentText *string, lamportClock uint64, updatedAt int64) (applied bool, err error) {
	var current uint64
	if err := tx.QueryRow(`SELECT lamport_clock FROM posts WHERE post_id = ?`, postID).Scan(&current); err != nil {
		return false, fmt.Errorf("store: apply post update: lookup: %w", err)
	}
	if lamportClock <= current {
		return false, nil
	}
	_, err = tx.Exec(`UPDATE posts SET content_text = ?, lamport_clock = ?, updated_at = ? WHERE post_id = ?`,
		contentText, lamportClock, updatedAt, postID)
	if err != nil {
		return false, fmt.Errorf("store: apply post update: %w", err)
	}
	return true, nil
}

// MarkPostDeleted tombstones a post; spec §4.5 keeps the row (for
// tombstone propagation) rather than deleting it.
func MarkPostDeleted(tx *sql.Tx, postID string, lamportClock uint64) error {
	_, err := tx.Exec(`UPDATE posts SET deleted = 1, lamport_clock = ? WHERE post_id = ? AND lamport_clock < ?`, lamportClock, postID, lamportClock)
	if err != nil {
		return fmt.Errorf("store: mark post deleted: %w", err)
	}
	return nil
}

// GetPost fetches a post and its media hashes.
func GetPost(db *sql.DB, postID string) (Post, error) {
	var p Post
	row := db.QueryRow(`SELECT post_id, author, content_type, content_text, visibility, lamport_clock, created_at, updated_at, deleted
		FROM posts WHERE post_id = ?`, postID)
	if err := row.Scan(&p.PostID, &p.Author, &p.ContentType, &p.ContentText, &p.Visibility, &p.LamportClock, &p.CreatedAt, &p.UpdatedAt, &p.Deleted); err != nil {
		return Post{}, err
	}
	rows, err := db.Query(`SELECT content_hash FROM post_media WHERE post_id = ?`, postID)
	if err != nil {
		return Post{}, fmt.Errorf("store: get post media: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return Post{}, fmt.Errorf("store: scan post media: %w", err)
		}
		p.MediaHashes = append(p.MediaHashes, h)
	}
	return p, rows.Err()
}

// ListWallPosts returns a page of posts by author, newest first, for
// feed materialization (spec §4.5).
func ListWallPosts(db *sql.DB, author string, beforeClock uint64, limit int) ([]Post, error) {
	rows, err := db.Query(`SELECT post_id, author, content_type, content_text, visibility, lamport_clock, created_at, updated_at, deleted
		FROM posts WHERE author = ? AND lamport_clock < ? AND deleted = 0 ORDER BY lamport_clock DESC LIMIT ?`, author, beforeClock, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list wall posts: %w", err)
	}
	defer rows.Close()
	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.PostID, &p.Author, &p.ContentType, &p.ContentText, &p.Visibility, &p.LamportClock, &p.CreatedAt, &p.UpdatedAt, &p.Deleted); err != nil {
			return nil, fmt.Errorf("store: scan wall post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPostsAfterCursor returns author's posts with lamport_clock strictly
// greater than afterClock, ascending by clock, for manifest building
// (spec §4.6 step 2). Tombstoned posts are included so deletions
// propagate to peers that sync past them.
func ListPostsAfterCursor(db *sql.DB, author string, afterClock uint64, limit int) ([]Post, error) {
	rows, err := db.Query(`SELECT post_id, author, content_type, content_text, visibility, lamport_clock, created_at, updated_at, deleted
		FROM posts WHERE author = ? AND lamport_clock > ? ORDER BY lamport_clock ASC LIMIT ?`, author, afterClock, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list posts after cursor: %w", err)
	}
	defer rows.Close()
	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.PostID, &p.Author, &p.ContentType, &p.ContentText, &p.Visibility, &p.LamportClock, &p.CreatedAt, &p.UpdatedAt, &p.Deleted); err != nil {
			return nil, fmt.Errorf("store: scan post after cursor: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range out {
		mediaRows, err := db.Query(`SELECT content_hash FROM post_media WHERE post_id = ?`, out[i].PostID)
		if err != nil {
			return nil, fmt.Errorf("store: list post media: %w", err)
		}
		for mediaRows.Next() {
			var h string
			if err := mediaRows.Scan(&h); err != nil {
				mediaRows.Close()
				return nil, fmt.Errorf("store: scan post media: %w", err)
			}
			out[i].MediaHashes = append(out[i].MediaHashes, h)
		}
		mediaRows.Close()
		if err := mediaRows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InsertComment records a comment on a post.
func InsertComment(tx *sql.Tx, commentID, postID, author, contentText string, lamportClock uint64, createdAt int64) error {
	_, err := tx.Exec(`INSERT INTO post_comments (comment_id, post_id, author, content_text, lamport_clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, commentID, postID, author, contentText, lamportClock, createdAt)
	if err != nil {
		return fmt.Errorf("store: insert comment: %w", err)
	}
	return nil
}

// UpsertLike records a like idempotently: a repeated like from the same
// author on the same post is a no-op, matching the signable's
// idempotency contract.
func UpsertLike(tx *sql.Tx, postID, author string, lamportClock uint64, createdAt int64) error {
	_, err := tx.Exec(`INSERT INTO post_likes (post_id, author, lamport_clock, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id, author) DO NOTHING`, postID, author, lamportClock, createdAt)
	if err != nil {
		return fmt.Errorf("store: upsert like: %w", err)
	}
	return nil
}

// CountLikes returns the number of likes on a post.
func CountLikes(db *sql.DB, postID string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM post_likes WHERE post_id = ?`, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count likes: %w", err)
	}
	return n, nil
}

// RecordPostEvent appends an audit row to post_events.
func RecordPostEvent(tx *sql.Tx, postID, author, eventType string, payload, signature []byte, lamportClock uint64, recordedAt int64) error {
	_, err := tx.Exec(`INSERT INTO post_events (post_id, author, event_type, payload, signature, lamport_clock, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, postID, author, eventType, payload, signature, lamportClock, recordedAt)
	if err != nil {
		return fmt.Errorf("store: record post event: %w", err)
	}
	return nil
}
