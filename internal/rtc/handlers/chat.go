package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftchat/drift-server/internal/rtc"
)

type chatRef struct {
	ChatID int64 `json:"chatId"`
}

type sendMessageData struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

// ChatJoinAck is the reply to a successful chat:join.
type ChatJoinAck struct {
	ChatID    int64                 `json:"chatId"`
	WithUser  string                `json:"withUser"`
	WithID    int64                 `json:"withUserId"`
	AvatarURL string                `json:"withAvatarUrl,omitempty"`
	Messages  []rtc.ChatMessageView `json:"messages"`
}

// ChatJoin subscribes the caller to a direct chat room and returns the other
// participant plus the chronological message history.
func (h *Handlers) ChatJoin(ctx context.Context, s *rtc.Session, data []byte, reply *rtc.Reply) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return rtc.BadRequest("chat id is required")
	}

	res, err := h.resolver.DirectChat(ctx, req.ChatID, s.UserID)
	if err != nil {
		return err
	}

	history, err := h.store.ListChatMessages(ctx, req.ChatID)
	if err != nil {
		return fmt.Errorf("list chat messages: %w", err)
	}

	h.registry.Join(s, rtc.ChatRoom(req.ChatID))

	messages := make([]rtc.ChatMessageView, 0, len(history))
	for _, m := range history {
		messages = append(messages, rtc.NewChatMessageView(m, s.UserID))
	}
	reply.OK(ChatJoinAck{
		ChatID:    req.ChatID,
		WithUser:  res.Other.DisplayName,
		WithID:    res.Other.ID,
		AvatarURL: res.Other.AvatarURL,
		Messages:  messages,
	})
	return nil
}

// ChatLeave drops the room subscription. No authorization needed: membership
// in the registry grants nothing beyond receiving broadcasts.
func (h *Handlers) ChatLeave(_ context.Context, s *rtc.Session, data []byte, _ *rtc.Reply) error {
	var req chatRef
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return rtc.BadRequest("chat id is required")
	}
	h.registry.Leave(s, rtc.ChatRoom(req.ChatID))
	return nil
}

// MessageSend persists a direct message and fans it out: the room gets it
// tagged "other", the caller's ack gets it tagged "self".
func (h *Handlers) MessageSend(ctx context.Context, s *rtc.Session, data []byte, reply *rtc.Reply) error {
	var req sendMessageData
	if err := json.Unmarshal(data, &req); err != nil || req.ChatID == 0 {
		return rtc.BadRequest("chat id is required")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return rtc.BadRequest("text is required")
	}

	if _, err := h.resolver.DirectChat(ctx, req.ChatID, s.UserID); err != nil {
		return err
	}

	msg, err := h.store.CreateChatMessage(ctx, req.ChatID, s.UserID, text, nil)
	if err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}

	broadcast := rtc.NewChatMessageView(msg, 0) // viewer 0: tagged "other" for recipients
	h.registry.Publish(rtc.ChatRoom(req.ChatID), rtc.EventMessageNew, broadcast, s)

	reply.OK(rtc.NewChatMessageView(msg, s.UserID))
	return nil
}
