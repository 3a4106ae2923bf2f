package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftchat/drift-server/internal/rtc"
)

type channelRef struct {
	ChannelID int64 `json:"channelId"`
}

type channelSendData struct {
	ChannelID int64  `json:"channelId"`
	Text      string `json:"text"`
}

// ChannelHistoryAck is the reply to a successful channelMessages:subscribe.
type ChannelHistoryAck struct {
	ChannelID int64                    `json:"channelId"`
	Messages  []rtc.ChannelMessageView `json:"messages"`
}

// ChannelSubscribe joins the caller to a channel's message room and replies
// with recent history in chronological order, bounded to the page size.
func (h *Handlers) ChannelSubscribe(ctx context.Context, s *rtc.Session, data []byte, reply *rtc.Reply) error {
	var req channelRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChannelID == 0 {
		return rtc.BadRequest("channel id is required")
	}

	if _, err := h.resolver.Channel(ctx, req.ChannelID, s.UserID); err != nil {
		return err
	}

	// Fetched most recent first, then reversed so clients render oldest to
	// newest.
	recent, err := h.store.ListChannelMessages(ctx, req.ChannelID, h.historyPageSize)
	if err != nil {
		return fmt.Errorf("list channel messages: %w", err)
	}

	h.registry.Join(s, rtc.ChannelMessagesRoom(req.ChannelID))

	messages := make([]rtc.ChannelMessageView, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		messages = append(messages, rtc.NewChannelMessageView(recent[i]))
	}
	reply.OK(ChannelHistoryAck{ChannelID: req.ChannelID, Messages: messages})
	return nil
}

// ChannelUnsubscribe drops the room subscription.
func (h *Handlers) ChannelUnsubscribe(_ context.Context, s *rtc.Session, data []byte, _ *rtc.Reply) error {
	var req channelRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChannelID == 0 {
		return rtc.BadRequest("channel id is required")
	}
	h.registry.Leave(s, rtc.ChannelMessagesRoom(req.ChannelID))
	return nil
}

// ChannelMessageSend persists a channel message attributed to the caller's
// membership and fans it out to the room.
func (h *Handlers) ChannelMessageSend(ctx context.Context, s *rtc.Session, data []byte, reply *rtc.Reply) error {
	var req channelSendData
	if err := json.Unmarshal(data, &req); err != nil || req.ChannelID == 0 {
		return rtc.BadRequest("channel id is required")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return rtc.BadRequest("text is required")
	}

	res, err := h.resolver.Channel(ctx, req.ChannelID, s.UserID)
	if err != nil {
		return err
	}

	msg, err := h.store.CreateChannelMessage(ctx, req.ChannelID, res.Membership.ID, text, nil)
	if err != nil {
		return fmt.Errorf("create channel message: %w", err)
	}

	view := rtc.NewChannelMessageView(msg)
	h.registry.Publish(rtc.ChannelMessagesRoom(req.ChannelID), rtc.EventChannelMessageNew, view, s)

	reply.OK(view)
	return nil
}
