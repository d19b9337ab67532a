// Package wall implements Harbor's local wall posting flow (spec
// §4.5): creating, editing and tombstoning posts, plus the
// comment/like supplements carried over from the original
// implementation.
//
// Grounded on original_source/src-tauri/src/services/post_service.rs
// and core/wallet.go's transactional commit-or-rollback style.
package wall

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/store"
)

// Service drives wall post mutations for the local identity.
type Service struct {
	db       *sql.DB
	identity *identity.Service
	clocks   *clockstore.Store
}

// New builds a wall service.
func New(db *sql.DB, id *identity.Service, clocks *clockstore.Store) *Service {
	return &Service{db: db, identity: id, clocks: clocks}
}

// CreatePost signs and persists a new wall post.
func (s *Service) CreatePost(postID, contentType string, contentText *string, mediaHashes []string, visibility string, now time.Time) (envelope.Post, []byte, error) {
	author, err := s.identity.PeerID()
	if err != nil {
		return envelope.Post{}, nil, err
	}
	clock, err := s.clocks.NextLamportClock(author)
	if err != nil {
		return envelope.Post{}, nil, err
	}
	p := envelope.Post{
		PostID: postID, Author: author, ContentType: contentType, ContentText: contentText,
		MediaHashes: mediaHashes, Visibility: visibility, LamportClock: clock, CreatedAt: now.Unix(),
	}
	sig, err := s.identity.Sign(p)
	if err != nil {
		return envelope.Post{}, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return envelope.Post{}, nil, fmt.Errorf("wall: create post: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.InsertPost(tx, store.Post{
		PostID: p.PostID, Author: p.Author, ContentType: p.ContentType, ContentText: p.ContentText,
		Visibility: p.Visibility, LamportClock: p.LamportClock, CreatedAt: p.CreatedAt, MediaHashes: p.MediaHashes,
	}); err != nil {
		return envelope.Post{}, nil, err
	}
	payload, err := envelope.SignableBytes(p)
	if err != nil {
		return envelope.Post{}, nil, err
	}
	if err := store.RecordPostEvent(tx, p.PostID, p.Author, "create", payload, sig, p.LamportClock, now.Unix()); err != nil {
		return envelope.Post{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.Post{}, nil, fmt.Errorf("wall: create post: commit: %w", err)
	}
	return p, sig, nil
}

// EditPost signs and applies a content edit under last-writer-wins.
func (s *Service) EditPost(postID string, contentText *string, now time.Time) (envelope.PostUpdate, []byte, error) {
	author, err := s.identity.PeerID()
	if err != nil {
		return envelope.PostUpdate{}, nil, err
	}
	clock, err := s.clocks.NextLamportClock(author)
	if err != nil {
		return envelope.PostUpdate{}, nil, err
	}
	upd := envelope.PostUpdate{PostID: postID, Author: author, ContentText: contentText, LamportClock: clock, UpdatedAt: now.Unix()}
	sig, err := s.identity.Sign(upd)
	if err != nil {
		return envelope.PostUpdate{}, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return envelope.PostUpdate{}, nil, fmt.Errorf("wall: edit post: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := store.ApplyPostUpdate(tx, postID, contentText, clock, now.Unix()); err != nil {
		return envelope.PostUpdate{}, nil, err
	}
	payload, err := envelope.SignableBytes(upd)
	if err != nil {
		return envelope.PostUpdate{}, nil, err
	}
	if err := store.RecordPostEvent(tx, postID, author, "update", payload, sig, clock, now.Unix()); err != nil {
		return envelope.PostUpdate{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.PostUpdate{}, nil, fmt.Errorf("wall: edit post: commit: %w", err)
	}
	return upd, sig, nil
}

// DeletePost tombstones a post.
func (s *Service) DeletePost(postID string, now time.Time) (envelope.PostDelete, []byte, error) {
	author, err := s.identity.PeerID()
	if err != nil {
		return envelope.PostDelete{}, nil, err
	}
	clock, err := s.clocks.NextLamportClock(author)
	if err != nil {
		return envelope.PostDelete{}, nil, err
	}
	del := envelope.PostDelete{PostID: postID, Author: author, LamportClock: clock, DeletedAt: now.Unix()}
	sig, err := s.identity.Sign(del)
	if err != nil {
		return envelope.PostDelete{}, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return envelope.PostDelete{}, nil, fmt.Errorf("wall: delete post: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.MarkPostDeleted(tx, postID, clock); err != nil {
		return envelope.PostDelete{}, nil, err
	}
	payload, err := envelope.SignableBytes(del)
	if err != nil {
		return envelope.PostDelete{}, nil, err
	}
	if err := store.RecordPostEvent(tx, postID, author, "delete", payload, sig, clock, now.Unix()); err != nil {
		return envelope.PostDelete{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.PostDelete{}, nil, fmt.Errorf("wall: delete post: commit: %w", err)
	}
	return del, sig, nil
}

// Comment signs and persists a comment on postID.
func (s *Service) Comment(commentID, postID, contentText string, now time.Time) (envelope.PostComment, []byte, error) {
	author, err := s.identity.PeerID()
	if err != nil {
		return envelope.PostComment{}, nil, err
	}
	clock, err := s.clocks.NextLamportClock(author)
	if err != nil {
		return envelope.PostComment{}, nil, err
	}
	c := envelope.PostComment{CommentID: commentID, PostID: postID, Author: author, ContentText: contentText, LamportClock: clock, CreatedAt: now.Unix()}
	sig, err := s.identity.Sign(c)
	if err != nil {
		return envelope.PostComment{}, nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return envelope.PostComment{}, nil, fmt.Errorf("wall: comment: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.InsertComment(tx, commentID, postID, author, contentText, clock, now.Unix()); err != nil {
		return envelope.PostComment{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.PostComment{}, nil, fmt.Errorf("wall: comment: commit: %w", err)
	}
	return c, sig, nil
}

// Like signs and records a like on postID. Idempotent: a repeat like
// from the same author is a no-op at the store layer.
func (s *Service) Like(postID string, now time.Time) (envelope.PostLike, []byte, error) {
	author, err := s.identity.PeerID()
	if err != nil {
		return envelope.PostLike{}, nil, err
	}
	clock, err := s.clocks.NextLamportClock(author)
	if err != nil {
		return envelope.PostLike{}, nil, err
	}
	l := envelope.PostLike{PostID: postID, Author: author, LamportClock: clock, CreatedAt: now.Unix()}
	sig, err := s.identity.Sign(l)
	if err != nil {
		return envelope.PostLike{}, nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return envelope.PostLike{}, nil, fmt.Errorf("wall: like: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.UpsertLike(tx, postID, author, clock, now.Unix()); err != nil {
		return envelope.PostLike{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return envelope.PostLike{}, nil, fmt.Errorf("wall: like: commit: %w", err)
	}
	return l, sig, nil
}
