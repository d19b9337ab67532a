package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bakobiibizo/harbor/internal/store"
)

func TestStoreMediaIsContentAddressedAndIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data := []byte("a test image payload")

	hash1, err := s.StoreMedia(data, "image/png")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	hash2, err := s.StoreMedia(data, "image/png")
	if err != nil {
		t.Fatalf("store again: %v", err)
	}
	if hash1 != hash2 {
		t.Fatalf("expected identical hash for identical bytes, got %s and %s", hash1, hash2)
	}
	if !s.HasMedia(hash1) {
		t.Fatalf("expected HasMedia true after store")
	}
	if s.HasMedia("deadbeef") {
		t.Fatalf("expected HasMedia false for unknown hash")
	}
}

func TestGetMediaChunkReadsBoundedWindow(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	hash, err := s.StoreMedia(data, "application/octet-stream")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	chunk, err := s.GetMediaChunk(hash, 0, 4)
	if err != nil {
		t.Fatalf("chunk 0: %v", err)
	}
	if len(chunk) != 4 || chunk[0] != 0 || chunk[3] != 3 {
		t.Fatalf("unexpected chunk 0: %v", chunk)
	}

	tail, err := s.GetMediaChunk(hash, 2, 4)
	if err != nil {
		t.Fatalf("chunk 2: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("expected 2-byte tail chunk, got %d", len(tail))
	}

	total, err := s.TotalChunks(hash, 4)
	if err != nil {
		t.Fatalf("total chunks: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 chunks for a 10-byte blob at size 4, got %d", total)
	}

	if _, err := s.GetMediaChunk(hash, total, 4); !errors.Is(err, ErrChunkOutOfRange) {
		t.Fatalf("expected ErrChunkOutOfRange at index == total_chunks, got %v", err)
	}
}

func TestDeleteMediaIfOrphanedRespectsReferenceCount(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	hash, err := s.StoreMedia([]byte("referenced"), "image/jpeg")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	stillReferenced := func(string) (int, error) { return 1, nil }
	deleted, err := s.DeleteMediaIfOrphaned(hash, stillReferenced)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatalf("expected blob with active reference to survive GC")
	}
	if !s.HasMedia(hash) {
		t.Fatalf("expected blob to still exist")
	}

	orphaned := func(string) (int, error) { return 0, nil }
	deleted, err = s.DeleteMediaIfOrphaned(hash, orphaned)
	if err != nil {
		t.Fatalf("delete orphaned: %v", err)
	}
	if !deleted {
		t.Fatalf("expected orphaned blob to be deleted")
	}
	if s.HasMedia(hash) {
		t.Fatalf("expected blob gone after GC")
	}
}

type fakeDialer struct {
	connected map[string]bool
	blobs     map[string][]byte
}

func (f *fakeDialer) IsConnected(author string) bool { return f.connected[author] }

func (f *fakeDialer) FetchFromAuthor(ctx context.Context, author, hash string) ([]byte, string, error) {
	return f.blobs[hash], "image/png", nil
}

func (f *fakeDialer) FetchThroughRelay(ctx context.Context, author, hash string) ([]byte, string, error) {
	return f.blobs[hash], "image/png", nil
}

func TestPreloaderFetchesMissingMediaGroupedByAuthor(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	dialer := &fakeDialer{
		connected: map[string]bool{"alice": true},
		blobs:     map[string][]byte{"hash-a": []byte("from alice"), "hash-b": []byte("from bob via relay")},
	}
	p := NewPreloader(s, dialer)

	missing := []store.MissingMediaRef{
		{ContentHash: "hash-a", PostID: "p1", Author: "alice"},
		{ContentHash: "hash-b", PostID: "p2", Author: "bob"},
	}
	have := make(map[string]struct{})
	fetched, err := p.Tick(context.Background(), have, missing)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if fetched != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetched)
	}
	if _, ok := have["hash-a"]; !ok {
		t.Fatalf("expected hash-a marked as now-present")
	}
	if _, ok := have["hash-b"]; !ok {
		t.Fatalf("expected hash-b marked as now-present")
	}
}

func TestFindExistingLocatesStoredBlob(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	hash, err := s.StoreMedia([]byte("x"), "text/plain")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	shard := filepath.Join(dir, hash[:2])
	if _, exists := s.findExisting(hash); !exists {
		t.Fatalf("expected existing blob under shard %s", shard)
	}
}
