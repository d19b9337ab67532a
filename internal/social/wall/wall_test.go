package wall

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bakobiibizo/harbor/internal/clockstore"
	"github.com/bakobiibizo/harbor/internal/identity"
	"github.com/bakobiibizo/harbor/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "harbor.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	id, err := identity.New(t.TempDir())
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if _, err := id.Create("pass"); err != nil {
		t.Fatalf("create: %v", err)
	}
	return New(db, id, clockstore.New(db))
}

func TestCreateEditDeletePost(t *testing.T) {
	s := newTestService(t)
	now := time.Unix(1000, 0)
	text := "hello"
	p, sig, err := s.CreatePost("p1", "text/plain", &text, nil, "public", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sig) == 0 {
		t.Fatalf("expected non-empty signature")
	}
	got, err := store.GetPost(s.db, p.PostID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Deleted {
		t.Fatalf("new post should not be deleted")
	}

	edited := "goodbye"
	if _, _, err := s.EditPost("p1", &edited, now.Add(time.Second)); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, err = store.GetPost(s.db, p.PostID)
	if err != nil {
		t.Fatalf("get after edit: %v", err)
	}
	if got.ContentText == nil || *got.ContentText != edited {
		t.Fatalf("expected edited content, got %v", got.ContentText)
	}

	if _, _, err := s.DeletePost("p1", now.Add(2*time.Second)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.GetPost(s.db, p.PostID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if !got.Deleted {
		t.Fatalf("expected post to be tombstoned")
	}
}

func TestLikeIsIdempotent(t *testing.T) {
	s := newTestService(t)
	now := time.Unix(1000, 0)
	text := "hi"
	p, _, err := s.CreatePost("p1", "text/plain", &text, nil, "public", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := s.Like(p.PostID, now); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, _, err := s.Like(p.PostID, now.Add(time.Second)); err != nil {
		t.Fatalf("second like: %v", err)
	}
	n, err := store.CountLikes(s.db, p.PostID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 like, got %d", n)
	}
}
