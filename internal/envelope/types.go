package envelope

// Each type below implements Signable with the exact field tuple named
// in spec §4.2, in declaration order. Optional fields are typed as
// pointers so an absent value encodes as CBOR null rather than changing
// the tuple's arity.

// Post is the signable tuple for a wall post (spec §4.2, §3).
type Post struct {
	PostID      string
	Author      string
	ContentType string
	ContentText *string
	MediaHashes []string
	Visibility  string
	LamportClock uint64
	CreatedAt   int64
}

func (p Post) DomainTag() string { return "post" }
func (p Post) Fields() []any {
	return []any{p.PostID, p.Author, p.ContentType, p.ContentText, p.MediaHashes, p.Visibility, p.LamportClock, p.CreatedAt}
}

// PostUpdate is the signable tuple for editing a wall post.
type PostUpdate struct {
	PostID       string
	Author       string
	ContentText  *string
	LamportClock uint64
	UpdatedAt    int64
}

func (p PostUpdate) DomainTag() string { return "post_update" }
func (p PostUpdate) Fields() []any {
	return []any{p.PostID, p.Author, p.ContentText, p.LamportClock, p.UpdatedAt}
}

// PostDelete is the signable tuple for tombstoning a wall post.
type PostDelete struct {
	PostID       string
	Author       string
	LamportClock uint64
	DeletedAt    int64
}

func (p PostDelete) DomainTag() string { return "post_delete" }
func (p PostDelete) Fields() []any {
	return []any{p.PostID, p.Author, p.LamportClock, p.DeletedAt}
}

// PostComment is the signable tuple for a comment on a wall post
// (supplemented from original_source's comments_repo.rs, §C8 of
// SPEC_FULL.md).
type PostComment struct {
	CommentID    string
	PostID       string
	Author       string
	ContentText  string
	LamportClock uint64
	CreatedAt    int64
}

func (c PostComment) DomainTag() string { return "post_comment" }
func (c PostComment) Fields() []any {
	return []any{c.CommentID, c.PostID, c.Author, c.ContentText, c.LamportClock, c.CreatedAt}
}

// PostLike is the signable tuple for liking a wall post (supplemented
// from original_source's likes_repo.rs). A like is idempotent per
// (post_id, author).
type PostLike struct {
	PostID       string
	Author       string
	LamportClock uint64
	CreatedAt    int64
}

func (l PostLike) DomainTag() string { return "post_like" }
func (l PostLike) Fields() []any {
	return []any{l.PostID, l.Author, l.LamportClock, l.CreatedAt}
}

// DirectMessage is the signable tuple for an encrypted direct message.
type DirectMessage struct {
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
}

func (m DirectMessage) DomainTag() string { return "direct_message" }
func (m DirectMessage) Fields() []any {
	return []any{m.MessageID, m.ConversationID, m.Sender, m.Recipient, m.ContentCiphertext, m.ContentType, m.ReplyTo, m.NonceCounter, m.LamportClock, m.SentAt}
}

// EditMessage is the signable tuple for editing a previously sent DM
// (named on the wire in spec §6, supplemented here per SPEC_FULL.md).
type EditMessage struct {
	MessageID         string
	ConversationID    string
	Sender            string
	NewCiphertext     []byte
	NonceCounter      uint64
	LamportClock      uint64
	EditedAt          int64
}

func (m EditMessage) DomainTag() string { return "edit_message" }
func (m EditMessage) Fields() []any {
	return []any{m.MessageID, m.ConversationID, m.Sender, m.NewCiphertext, m.NonceCounter, m.LamportClock, m.EditedAt}
}

// MessageAck is the signable tuple for a delivery/read receipt.
type MessageAck struct {
	MessageID      string
	ConversationID string
	AckSender      string
	Status         string
	Timestamp      int64
}

func (a MessageAck) DomainTag() string { return "message_ack" }
func (a MessageAck) Fields() []any {
	return []any{a.MessageID, a.ConversationID, a.AckSender, a.Status, a.Timestamp}
}

// PermissionRequest is the signable tuple for requesting a capability.
type PermissionRequest struct {
	RequestID    string
	Requester    string
	Capability   string
	Message      *string
	LamportClock uint64
	Timestamp    int64
}

func (r PermissionRequest) DomainTag() string { return "permission_request" }
func (r PermissionRequest) Fields() []any {
	return []any{r.RequestID, r.Requester, r.Capability, r.Message, r.LamportClock, r.Timestamp}
}

// PermissionGrant is the signable tuple for issuing a capability grant.
type PermissionGrant struct {
	GrantID      string
	Issuer       string
	Subject      string
	Capability   string
	Scope        *string
	LamportClock uint64
	IssuedAt     int64
	ExpiresAt    *int64
}

func (g PermissionGrant) DomainTag() string { return "permission_grant" }
func (g PermissionGrant) Fields() []any {
	return []any{g.GrantID, g.Issuer, g.Subject, g.Capability, g.Scope, g.LamportClock, g.IssuedAt, g.ExpiresAt}
}

// PermissionRevoke is the signable tuple for revoking a capability
// grant.
type PermissionRevoke struct {
	GrantID      string
	Issuer       string
	LamportClock uint64
	RevokedAt    int64
}

func (r PermissionRevoke) DomainTag() string { return "permission_revoke" }
func (r PermissionRevoke) Fields() []any {
	return []any{r.GrantID, r.Issuer, r.LamportClock, r.RevokedAt}
}

// SignalingOffer/SignalingAnswer carry an opaque SDP blob; Harbor never
// parses SDP (spec §1 Non-goals), only signs and forwards it.
type SignalingOffer struct {
	CallID    string
	Caller    string
	Callee    string
	SDP       string
	Timestamp int64
}

func (s SignalingOffer) DomainTag() string { return "signaling_offer" }
func (s SignalingOffer) Fields() []any {
	return []any{s.CallID, s.Caller, s.Callee, s.SDP, s.Timestamp}
}

type SignalingAnswer struct {
	CallID    string
	Caller    string
	Callee    string
	SDP       string
	Timestamp int64
}

func (s SignalingAnswer) DomainTag() string { return "signaling_answer" }
func (s SignalingAnswer) Fields() []any {
	return []any{s.CallID, s.Caller, s.Callee, s.SDP, s.Timestamp}
}

// SignalingIce carries one opaque ICE candidate string.
type SignalingIce struct {
	CallID        string
	Sender        string
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
	Timestamp     int64
}

func (s SignalingIce) DomainTag() string { return "signaling_ice" }
func (s SignalingIce) Fields() []any {
	return []any{s.CallID, s.Sender, s.Candidate, s.SDPMid, s.SDPMLineIndex, s.Timestamp}
}

// SignalingHangup ends a call.
type SignalingHangup struct {
	CallID    string
	Sender    string
	Reason    string
	Timestamp int64
}

func (s SignalingHangup) DomainTag() string { return "signaling_hangup" }
func (s SignalingHangup) Fields() []any {
	return []any{s.CallID, s.Sender, s.Reason, s.Timestamp}
}

// BoardPost is the signable tuple for a relay-hosted community board
// post.
type BoardPost struct {
	PostID       string
	BoardID      string
	Author       string
	ContentType  string
	ContentText  *string
	LamportClock uint64
	CreatedAt    int64
}

func (b BoardPost) DomainTag() string { return "board_post" }
func (b BoardPost) Fields() []any {
	return []any{b.PostID, b.BoardID, b.Author, b.ContentType, b.ContentText, b.LamportClock, b.CreatedAt}
}

// BoardPostDelete is the signable tuple for deleting a board post.
type BoardPostDelete struct {
	PostID       string
	BoardID      string
	Author       string
	LamportClock uint64
	DeletedAt    int64
}

func (b BoardPostDelete) DomainTag() string { return "board_post_delete" }
func (b BoardPostDelete) Fields() []any {
	return []any{b.PostID, b.BoardID, b.Author, b.LamportClock, b.DeletedAt}
}

// BoardListRequest lists the boards hosted by a relay.
type BoardListRequest struct {
	Requester string
	Timestamp int64
}

func (r BoardListRequest) DomainTag() string { return "board_list_request" }
func (r BoardListRequest) Fields() []any {
	return []any{r.Requester, r.Timestamp}
}

// BoardPostsRequest fetches a page of posts for one board.
type BoardPostsRequest struct {
	Requester string
	BoardID   string
	Before    *int64
	Limit     uint32
	Timestamp int64
}

func (r BoardPostsRequest) DomainTag() string { return "board_posts_request" }
func (r BoardPostsRequest) Fields() []any {
	return []any{r.Requester, r.BoardID, r.Before, r.Limit, r.Timestamp}
}

// PeerRegistration is a RegisterPeer request: a peer presents its
// Ed25519 public key to the relay so later signature verification has a
// key to check against (spec §4.10).
type PeerRegistration struct {
	PeerID      string
	PublicKey   []byte
	DisplayName string
	Timestamp   int64
}

func (r PeerRegistration) DomainTag() string { return "peer_registration" }
func (r PeerRegistration) Fields() []any {
	return []any{r.PeerID, r.PublicKey, r.DisplayName, r.Timestamp}
}

// SubmitWallPostRequest is the doubly-signed envelope for mirroring a
// wall post on a relay (spec §4.10): InnerSignature is the author's
// original Post signature, RequestSignature is the submitting peer's
// signature over this request's own fields.
type SubmitWallPostRequest struct {
	SubmittingPeer string
	Post           Post
	InnerSignature []byte
	Timestamp      int64
}

func (r SubmitWallPostRequest) DomainTag() string { return "submit_wall_post_request" }
func (r SubmitWallPostRequest) Fields() []any {
	return []any{r.SubmittingPeer, r.Post.PostID, r.Post.Author, r.InnerSignature, r.Timestamp}
}

// ManifestRequest is the pull-sync cursor exchange request of spec §4.6.
type ManifestRequest struct {
	Requester string
	Cursor    map[string]uint64
	Limit     uint32
	Timestamp int64
}

func (r ManifestRequest) DomainTag() string { return "manifest_request" }
func (r ManifestRequest) Fields() []any {
	return []any{r.Requester, r.Cursor, r.Limit, r.Timestamp}
}

// ContentManifestRequest is an alias wire name used by the content-sync
// sub-protocol (spec §4.6/§6); kept distinct for protocol framing while
// sharing ManifestRequest's fields.
type ContentManifestRequest = ManifestRequest

// PostSummary is one manifest entry (not independently signed — carried
// inside a signed ManifestResponse).
type PostSummary struct {
	PostID       string
	Author       string
	LamportClock uint64
	ContentType  string
	HasMedia     bool
	MediaHashes  []string
	CreatedAt    int64
}

// ManifestResponse is the signed response to a ManifestRequest.
type ManifestResponse struct {
	Responder  string
	Posts      []PostSummary
	HasMore    bool
	NextCursor map[string]uint64
	Timestamp  int64
}

func (r ManifestResponse) DomainTag() string { return "manifest_response" }
func (r ManifestResponse) Fields() []any {
	return []any{r.Responder, r.Posts, r.HasMore, r.NextCursor, r.Timestamp}
}

// ContentManifestResponse aliases ManifestResponse for the wire name of
// spec §4.2/§6.
type ContentManifestResponse = ManifestResponse

// FetchRequest asks a peer for a full post by ID.
type FetchRequest struct {
	Requester    string
	PostID       string
	IncludeMedia bool
	Timestamp    int64
}

func (r FetchRequest) DomainTag() string { return "fetch_request" }
func (r FetchRequest) Fields() []any {
	return []any{r.Requester, r.PostID, r.IncludeMedia, r.Timestamp}
}
