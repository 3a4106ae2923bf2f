package rtc

import (
	"time"

	"github.com/driftchat/drift-server/internal/store"
)

// Wire views shared by the socket handlers and the HTTP broadcast bridge.
// Both surfaces publish into the same rooms, so they must serialize domain
// entities identically.

// Message sender tags relative to the receiving side.
const (
	SenderSelf  = "self"
	SenderOther = "other"
)

// AttachmentView is an attachment as sent to clients.
type AttachmentView struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ChatMessageView is a direct message as sent to clients.
type ChatMessageView struct {
	ID          int64            `json:"id"`
	ChatID      int64            `json:"chatId"`
	Sender      string           `json:"sender"`
	AuthorID    int64            `json:"authorId"`
	AuthorName  string           `json:"authorName"`
	Text        string           `json:"text"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NewChatMessageView renders a direct message tagged relative to viewerID.
func NewChatMessageView(m *store.ChatMessage, viewerID int64) ChatMessageView {
	sender := SenderOther
	if m.AuthorID == viewerID {
		sender = SenderSelf
	}
	return ChatMessageView{
		ID:          m.ID,
		ChatID:      m.ChatID,
		Sender:      sender,
		AuthorID:    m.AuthorID,
		AuthorName:  m.AuthorName,
		Text:        m.Text,
		Attachments: attachmentViews(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
}

// ChannelMessageView is a channel message as sent to clients.
type ChannelMessageView struct {
	ID          int64            `json:"id"`
	ChannelID   int64            `json:"channelId"`
	MemberID    int64            `json:"memberId"`
	AuthorID    int64            `json:"authorId"`
	AuthorName  string           `json:"authorName"`
	Text        string           `json:"text"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NewChannelMessageView renders a channel message.
func NewChannelMessageView(m *store.ChannelMessage) ChannelMessageView {
	return ChannelMessageView{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		MemberID:    m.MemberID,
		AuthorID:    m.AuthorID,
		AuthorName:  m.AuthorName,
		Text:        m.Text,
		Attachments: attachmentViews(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
}

// ChannelView is a channel as sent to clients.
type ChannelView struct {
	ID       int64  `json:"id"`
	ServerID int64  `json:"serverId"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
}

// NewChannelView renders a channel.
func NewChannelView(ch *store.Channel) ChannelView {
	return ChannelView{ID: ch.ID, ServerID: ch.ServerID, Name: ch.Name, Order: ch.Order}
}

// MemberView is a server member as sent to clients.
type MemberView struct {
	UserID   int64    `json:"userId"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// NewMemberView renders a membership.
func NewMemberView(m *store.Membership) MemberView {
	roles := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, r.Name)
	}
	return MemberView{UserID: m.UserID, Nickname: m.Nickname, Roles: roles}
}

// ServerView is a server's public shape as sent to clients.
type ServerView struct {
	ID          int64         `json:"id"`
	ShortID     string        `json:"shortId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	IconURL     string        `json:"iconUrl,omitempty"`
	Members     []MemberView  `json:"members,omitempty"`
	Channels    []ChannelView `json:"channels,omitempty"`
}

// NewServerView renders a server with its member and visible channel lists.
func NewServerView(srv *store.Server, members []*store.Membership, channels []*store.Channel) ServerView {
	v := ServerView{
		ID:          srv.ID,
		ShortID:     srv.ShortID,
		Name:        srv.Name,
		Description: srv.Description,
		IconURL:     srv.IconURL,
	}
	for _, m := range members {
		v.Members = append(v.Members, NewMemberView(m))
	}
	for _, ch := range channels {
		v.Channels = append(v.Channels, NewChannelView(ch))
	}
	return v
}

func attachmentViews(in []store.Attachment) []AttachmentView {
	if len(in) == 0 {
		return nil
	}
	out := make([]AttachmentView, 0, len(in))
	for _, a := range in {
		out = append(out, AttachmentView{Key: a.Key, URL: a.URL})
	}
	return out
}
