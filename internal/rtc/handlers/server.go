package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftchat/drift-server/internal/rtc"
)

type serverRef struct {
	ServerID string `json:"serverId"`
}

// ServerSubscribe joins the caller to the server's event room and replies
// with the server's public shape: profile, member list and the channels the
// caller's roles allow.
func (h *Handlers) ServerSubscribe(ctx context.Context, s *rtc.Session, data []byte, reply *rtc.Reply) error {
	var req serverRef
	if err := json.Unmarshal(data, &req); err != nil || req.ServerID == "" {
		return rtc.BadRequest("server id is required")
	}

	res, err := h.resolver.Server(ctx, req.ServerID, s.UserID)
	if err != nil {
		return err
	}

	members, err := h.store.ListMembers(ctx, res.Server.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	channels, err := h.resolver.VisibleChannels(ctx, res.Server.ID, res.Membership)
	if err != nil {
		return err
	}

	h.registry.Join(s, rtc.ServerRoom(res.Server.ID))

	reply.OK(rtc.NewServerView(res.Server, members, channels))
	return nil
}

// ServerUnsubscribe leaves the server room. Best-effort cleanup: resolution
// failures are logged, never surfaced.
func (h *Handlers) ServerUnsubscribe(ctx context.Context, s *rtc.Session, data []byte, _ *rtc.Reply) error {
	var req serverRef
	if err := json.Unmarshal(data, &req); err != nil || req.ServerID == "" {
		h.log.Debug().Int64("user_id", s.UserID).Msg("server:unsubscribe with no server id")
		return nil
	}

	res, err := h.resolver.Server(ctx, req.ServerID, s.UserID)
	if err != nil {
		h.log.Debug().Err(err).Int64("user_id", s.UserID).Str("server_ref", req.ServerID).
			Msg("server:unsubscribe resolution failed")
		return nil
	}

	h.registry.Leave(s, rtc.ServerRoom(res.Server.ID))
	return nil
}
