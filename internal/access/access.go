// Package access resolves whether a user may act on a chat, server or
// channel. It is the single authority consulted by both the real-time
// handlers and the HTTP mutation layer, so the two surfaces cannot drift on
// membership or role rules.
package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/driftchat/drift-server/internal/store"
)

// Failure codes carried by Error so callers can pick the right protocol error.
const (
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
)

// Error is a resolution failure with enough context to map onto the ack
// envelope taxonomy. Booleans are not enough: the caller needs to know
// whether the resource was missing or the user lacked access.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err is an access denial.
func IsUnauthorized(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == CodeUnauthorized
}

// IsNotFound reports whether err is a missing-resource failure.
func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == CodeNotFound
}

func notFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Resolver answers authorization questions against the repository layer.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// DirectChatResult is a successful direct chat resolution.
type DirectChatResult struct {
	Chat  *store.DirectChat
	Other *store.User
}

// DirectChat loads the chat and checks the user is one of its two
// participants, returning the chat and the other participant.
func (r *Resolver) DirectChat(ctx context.Context, chatID, userID int64) (*DirectChatResult, error) {
	chat, err := r.store.GetDirectChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("chat")
		}
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if !chat.HasParticipant(userID) {
		return nil, unauthorized("not a participant")
	}

	other, err := r.store.GetUserByID(ctx, chat.OtherParticipant(userID))
	if err != nil {
		return nil, fmt.Errorf("load other participant: %w", err)
	}
	return &DirectChatResult{Chat: chat, Other: other}, nil
}

// ServerResult is a successful server resolution.
type ServerResult struct {
	Server     *store.Server
	Membership *store.Membership
}

// Server loads a server by numeric id or short id and checks membership.
func (r *Resolver) Server(ctx context.Context, ref string, userID int64) (*ServerResult, error) {
	var srv *store.Server
	var err error
	if id, parseErr := strconv.ParseInt(ref, 10, 64); parseErr == nil {
		srv, err = r.store.GetServerByID(ctx, id)
	} else {
		srv, err = r.store.GetServerByShortID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("server")
		}
		return nil, fmt.Errorf("load server: %w", err)
	}

	membership, err := r.store.GetMembership(ctx, srv.ID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unauthorized("not a member")
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &ServerResult{Server: srv, Membership: membership}, nil
}

// ServerByID resolves server access when the caller already has a numeric id.
func (r *Resolver) ServerByID(ctx context.Context, serverID, userID int64) (*ServerResult, error) {
	return r.Server(ctx, strconv.FormatInt(serverID, 10), userID)
}

// ChannelResult is a successful channel resolution.
type ChannelResult struct {
	Channel    *store.Channel
	Server     *store.Server
	Membership *store.Membership
}

// Channel loads the channel and its parent server, resolves server access,
// then rejects when any of the caller's roles is disallowed on the channel.
func (r *Resolver) Channel(ctx context.Context, channelID, userID int64) (*ChannelResult, error) {
	ch, err := r.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("channel")
		}
		return nil, fmt.Errorf("load channel: %w", err)
	}

	srvRes, err := r.ServerByID(ctx, ch.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if srvRes.Membership.HasAnyRole(ch.DisallowedRoleIDs) {
		return nil, unauthorized("no channel access")
	}

	return &ChannelResult{Channel: ch, Server: srvRes.Server, Membership: srvRes.Membership}, nil
}

// VisibleChannels lists the server's channels minus those the membership's
// roles are disallowed from viewing. Both the socket and HTTP listings go
// through here.
func (r *Resolver) VisibleChannels(ctx context.Context, serverID int64, membership *store.Membership) ([]*store.Channel, error) {
	channels, err := r.store.ListChannels(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	visible := make([]*store.Channel, 0, len(channels))
	for _, ch := range channels {
		if membership.HasAnyRole(ch.DisallowedRoleIDs) {
			continue
		}
		visible = append(visible, ch)
	}
	return visible, nil
}
