// Package board implements the client side of Harbor's relay-hosted
// community boards (spec §4.10): building the doubly-signed
// SubmitWallPostRequest envelope a peer sends to a relay, and
// materializing boards fetched from one.
//
// Grounded on original_source/src-tauri/src/services/board_service.rs
// and the relay wire-format decisions captured in SPEC_FULL.md's C10
// section.
package board

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/store"
)

// Service drives community board interactions from the client side.
type Service struct {
	db       *sql.DB
	identity *identity.Service
	clocks   *clockstore.Store
}

// New builds a board client service.
func New(db *sql.DB, id *identity.Service, clocks *clockstore.Store) *Service {
	return &Service{db: db, identity: id, clocks: clocks}
}

// PrepareSubmission wraps an already-signed Post in the doubly-signed
// SubmitWallPostRequest a relay expects: the author's Post signature
// (postSig) is carried as InnerSignature, and the whole request is
// itself signed by the submitting peer's identity (which may be the
// author, or a relay member resubmitting on the author's behalf).
// boardID is not carried in the request.
func (s *Service) PrepareSubmission(boardID string, p envelope.Post, postSig []byte, now time.Time) (envelope.SubmitWallPostRequest, []byte, error) {
	submitter, err := s.identity.PeerID()
	if err != nil {
		return envelope.SubmitWallPostRequest{}, nil, err
	}
	req := envelope.SubmitWallPostRequest{
		SubmittingPeer: submitter,
		Post:           p,
		InnerSignature: postSig,
		Timestamp:      now.Unix(),
	}
	sig, err := s.identity.Sign(req)
	if err != nil {
		return envelope.SubmitWallPostRequest{}, nil, err
	}
	return req, sig, nil
}

// ApplyFetchedBoardPost persists a board post retrieved from a relay.
// It stores bp as given and verifies no signature.
func (s *Service) ApplyFetchedBoardPost(bp envelope.BoardPost) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("board: apply fetched post: begin: %w", err)
	}
	defer tx.Rollback()
	if err := store.InsertBoardPost(tx, store.BoardPost{
		PostID: bp.PostID, BoardID: bp.BoardID, Author: bp.Author, ContentType: bp.ContentType,
		ContentText: bp.ContentText, LamportClock: bp.LamportClock, CreatedAt: bp.CreatedAt,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("board: apply fetched post: commit: %w", err)
	}
	return nil
}

// ListLocalBoardPosts returns a locally cached page of a board's posts.
func (s *Service) ListLocalBoardPosts(boardID string, beforeClock uint64, limit int) ([]store.BoardPost, error) {
	return store.ListBoardPosts(s.db, boardID, beforeClock, limit)
}
