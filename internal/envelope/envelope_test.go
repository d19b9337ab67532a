package envelope

import (
	"testing"

	"github.com/bakobiibizo/harbor/internal/cryptocore"
)

func TestPostSignRoundTrip(t *testing.T) {
	pub, priv, err := cryptocore.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	text := "hello harbor"
	p := Post{
		PostID:       "post-1",
		Author:       "author-1",
		ContentType:  "text/plain",
		ContentText:  &text,
		MediaHashes:  []string{"abc123"},
		Visibility:   "public",
		LamportClock: 1,
		CreatedAt:    1000,
	}
	sig, err := Sign(priv, p)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(pub, p, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}

	tampered := p
	tampered.LamportClock = 2
	ok, err = Verify(pub, tampered, sig)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Fatalf("expected tampered field to fail verification")
	}
}

func TestDomainSeparationPreventsTypeConfusion(t *testing.T) {
	pub, priv, err := cryptocore.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	del := PostDelete{PostID: "post-1", Author: "author-1", LamportClock: 3, DeletedAt: 2000}
	sig, err := Sign(priv, del)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// A PostUpdate whose fields happen to encode similarly must not
	// verify against a PostDelete signature: the domain tag differs.
	text := "x"
	upd := PostUpdate{PostID: "post-1", Author: "author-1", ContentText: &text, LamportClock: 3, UpdatedAt: 2000}
	ok, err := Verify(pub, upd, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected cross-type signature confusion to be rejected")
	}
}

func TestManifestResponseRoundTrip(t *testing.T) {
	pub, priv, err := cryptocore.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	resp := ManifestResponse{
		Responder: "relay-1",
		Posts: []PostSummary{
			{PostID: "p1", Author: "a1", LamportClock: 4, ContentType: "text/plain", HasMedia: false, CreatedAt: 10},
		},
		HasMore:    true,
		NextCursor: map[string]uint64{"a1": 4},
		Timestamp:  20,
	}
	sig, err := Sign(priv, resp)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(pub, resp, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected manifest response signature to verify")
	}
}
