package relayserver

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/bakobiibizo/harbor/internal/envelope"
	"github.com/bakobiibizo/harbor/internal/store"
	"github.com/bakobiibizo/harbor/internal/transport"
)

// WireRequest is the tagged union carried over the board sub-protocol
// (spec §4.10/§6): exactly one of the pointer fields is populated,
// selected by Kind.
type WireRequest struct {
	Kind string

	PeerRegistration    *envelope.PeerRegistration
	PeerRegistrationSig []byte

	SubmitWallPost    *envelope.SubmitWallPostRequest
	SubmitWallPostSig []byte

	BoardPost    *envelope.BoardPost
	BoardPostSig []byte

	BoardListRequest  *envelope.BoardListRequest
	BoardPostsRequest *envelope.BoardPostsRequest
}

// WireResponse is the board sub-protocol's single response shape.
type WireResponse struct {
	OK      bool
	Error   string
	Boards  []string
	Posts   []store.BoardPost
	Applied bool
}

// Handler adapts Server's request methods to transport.RequestHandler,
// decoding the generic frame transport.Host hands back into a concrete
// WireRequest by round-tripping through CBOR, since Host.Handle reads
// frames into an untyped interface{}.
func Handler(srv *Server, now func() int64) transport.RequestHandler {
	return func(ctx context.Context, from peer.ID, raw any) (any, error) {
		body, err := cbor.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("relayserver: re-marshal frame: %w", err)
		}
		var req WireRequest
		if err := cbor.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("relayserver: decode board request: %w", err)
		}

		at := time.Unix(now(), 0)

		switch req.Kind {
		case "peer_registration":
			if req.PeerRegistration == nil {
				return WireResponse{Error: "missing peer_registration"}, nil
			}
			if err := srv.RegisterPeer(*req.PeerRegistration, req.PeerRegistrationSig, at); err != nil {
				return WireResponse{Error: err.Error()}, nil
			}
			return WireResponse{OK: true}, nil

		case "submit_wall_post":
			if req.SubmitWallPost == nil {
				return WireResponse{Error: "missing submit_wall_post"}, nil
			}
			applied, err := srv.SubmitWallPost(*req.SubmitWallPost, req.SubmitWallPostSig, at)
			if err != nil {
				return WireResponse{Error: err.Error()}, nil
			}
			return WireResponse{OK: true, Applied: applied}, nil

		case "board_post":
			if req.BoardPost == nil {
				return WireResponse{Error: "missing board_post"}, nil
			}
			if err := srv.SubmitBoardPost(*req.BoardPost, req.BoardPostSig, at); err != nil {
				return WireResponse{Error: err.Error()}, nil
			}
			return WireResponse{OK: true}, nil

		case "board_list_request":
			if req.BoardListRequest == nil {
				return WireResponse{Error: "missing board_list_request"}, nil
			}
			boards, err := srv.ListBoards(req.BoardListRequest.Requester)
			if err != nil {
				return WireResponse{Error: err.Error()}, nil
			}
			return WireResponse{OK: true, Boards: boards}, nil

		case "board_posts_request":
			if req.BoardPostsRequest == nil {
				return WireResponse{Error: "missing board_posts_request"}, nil
			}
			var before uint64 = ^uint64(0)
			if req.BoardPostsRequest.Before != nil {
				before = uint64(*req.BoardPostsRequest.Before)
			}
			limit := int(req.BoardPostsRequest.Limit)
			if limit <= 0 {
				limit = 50
			}
			posts, err := srv.ListBoardPosts(req.BoardPostsRequest.BoardID, before, limit)
			if err != nil {
				return WireResponse{Error: err.Error()}, nil
			}
			return WireResponse{OK: true, Posts: posts}, nil

		default:
			return WireResponse{Error: fmt.Sprintf("unknown board request kind %q", req.Kind)}, nil
		}
	}
}
