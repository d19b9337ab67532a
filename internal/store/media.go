package store

import (
	"database/sql"
	"fmt"
)

// CountMediaReferences returns how many posts still reference hash, so
// orphan GC can double-check a zero count inside the same transaction
// that deletes the blob (spec §4.11).
func CountMediaReferences(db *sql.DB, hash string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM post_media WHERE content_hash = ?`, hash).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count media references: %w", err)
	}
	return n, nil
}

// MissingMediaRef is one row of the preloader's scan: a referenced hash
// whose author hasn't been fetched locally yet.
type MissingMediaRef struct {
	ContentHash string
	PostID      string
	Author      string
}

// ListMissingMedia returns post_media rows whose hash is not present in
// haveHashes, grouped implicitly by author for the preloader to dial
// (spec §4.11 preload strategy: group by author, fetch directly if
// connected, else through the attached relay circuit).
func ListMissingMedia(db *sql.DB, haveHashes map[string]struct{}) ([]MissingMediaRef, error) {
	rows, err := db.Query(`SELECT pm.content_hash, pm.post_id, p.author
		FROM post_media pm JOIN posts p ON p.post_id = pm.post_id
		WHERE p.deleted = 0
		ORDER BY p.author`)
	if err != nil {
		return nil, fmt.Errorf("store: list missing media: %w", err)
	}
	defer rows.Close()
	var out []MissingMediaRef
	for rows.Next() {
		var ref MissingMediaRef
		if err := rows.Scan(&ref.ContentHash, &ref.PostID, &ref.Author); err != nil {
			return nil, fmt.Errorf("store: scan missing media: %w", err)
		}
		if _, have := haveHashes[ref.ContentHash]; have {
			continue
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
