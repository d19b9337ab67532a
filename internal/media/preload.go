package media

import (
	"context"

	"github.com/bakobiibizo/harbor/internal/store"
)

// PeerDialer abstracts the two ways the preloader can reach an author:
// directly if already connected, or through the currently attached
// relay circuit otherwise.
type PeerDialer interface {
	IsConnected(author string) bool
	FetchFromAuthor(ctx context.Context, author, contentHash string) ([]byte, string, error)
	FetchThroughRelay(ctx context.Context, author, contentHash string) ([]byte, string, error)
}

// Preloader periodically scans for missing media referenced by known
// posts and fetches it, grouped by author so a single dial can satisfy
// several missing hashes at once (spec §4.11 preload strategy).
type Preloader struct {
	store  *Store
	dialer PeerDialer
}

// NewPreloader builds a Preloader over blobStore using dialer to reach
// remote authors.
func NewPreloader(blobStore *Store, dialer PeerDialer) *Preloader {
	return &Preloader{store: blobStore, dialer: dialer}
}

// haveSet is populated by the caller from the blob store's known
// hashes; kept as a package-level helper signature so Tick's caller
// can pass whatever it already tracked.
type haveSet = map[string]struct{}

// Tick runs one preload pass: skip the caller-supplied missing refs
// whose hash is already in have, dial each
// author still owed a fetch (connected directly, or through the
// currently attached relay otherwise), and store whatever comes back.
// A peer that can't be reached this tick is simply retried on the next
// tick once it (re)connects — no retry backoff state is kept here.
func (p *Preloader) Tick(ctx context.Context, have haveSet, missing []store.MissingMediaRef) (fetched int, err error) {
	byAuthor := make(map[string][]store.MissingMediaRef)
	for _, m := range missing {
		if _, ok := have[m.ContentHash]; ok {
			continue
		}
		byAuthor[m.Author] = append(byAuthor[m.Author], m)
	}

	for author, refs := range byAuthor {
		fetchFn := p.dialer.FetchThroughRelay
		if p.dialer.IsConnected(author) {
			fetchFn = p.dialer.FetchFromAuthor
		}
		for _, ref := range refs {
			data, mime, err := fetchFn(ctx, author, ref.ContentHash)
			if err != nil {
				continue
			}
			if _, err := p.store.StoreMedia(data, mime); err != nil {
				continue
			}
			have[ref.ContentHash] = struct{}{}
			fetched++
		}
	}
	return fetched, nil
}
