package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidParticipants is returned when a direct chat is created or mutated
// with a participant count other than two.
var ErrInvalidParticipants = errors.New("direct chat requires exactly two participants")

// User represents a user in the system.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

// DirectChat is a one-to-one conversation. It always has exactly two
// participants.
type DirectChat struct {
	ID           int64
	Participants [2]int64
	CreatedAt    time.Time
}

// HasParticipant reports whether the user is one of the chat's two participants.
func (c *DirectChat) HasParticipant(userID int64) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the participant that is not the given user.
func (c *DirectChat) OtherParticipant(userID int64) int64 {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Server is a community owned by exactly one user.
type Server struct {
	ID          int64
	ShortID     string
	Name        string
	Description string
	IconURL     string
	OwnerID     int64
	CreatedAt   time.Time
}

// Role is a named role scoped to one server.
type Role struct {
	ID       int64
	ServerID int64
	Name     string
}

// Membership links a user to a server and carries zero or more roles.
type Membership struct {
	ID       int64
	ServerID int64
	UserID   int64
	Nickname string
	Roles    []Role
	JoinedAt time.Time
}

// HasAnyRole reports whether the membership carries any of the given role ids.
func (m *Membership) HasAnyRole(roleIDs []int64) bool {
	for _, id := range roleIDs {
		for _, r := range m.Roles {
			if r.ID == id {
				return true
			}
		}
	}
	return false
}

// Channel belongs to one server. DisallowedRoleIDs lists roles barred from
// viewing it.
type Channel struct {
	ID                int64
	ServerID          int64
	Name              string
	Order             int
	DisallowedRoleIDs []int64
	CreatedAt         time.Time
}

// Attachment is an opaque stored file referenced by a message.
type Attachment struct {
	ID        int64
	Key       string
	URL       string
	CreatedAt time.Time
}

// ChatMessage is a message in a direct chat. AuthorName is denormalized from
// the users table on read.
type ChatMessage struct {
	ID          int64
	ChatID      int64
	AuthorID    int64
	AuthorName  string
	Text        string
	Attachments []Attachment
	CreatedAt   time.Time
}

// ChannelMessage is a message in a server channel, attributed to the sender's
// membership so nickname and role context travel with it.
type ChannelMessage struct {
	ID          int64
	ChannelID   int64
	MemberID    int64
	AuthorID    int64
	AuthorName  string
	Text        string
	Attachments []Attachment
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user.
	CreateUser(ctx context.Context, username, displayName string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// ChatStore handles direct chat persistence.
type ChatStore interface {
	// CreateDirectChat creates a chat between exactly two users.
	CreateDirectChat(ctx context.Context, participants []int64) (*DirectChat, error)

	// GetDirectChat retrieves a chat by ID.
	GetDirectChat(ctx context.Context, id int64) (*DirectChat, error)

	// CreateChatMessage persists a direct message and returns it with its id,
	// author name and timestamp filled in.
	CreateChatMessage(ctx context.Context, chatID, authorID int64, text string, attachments []Attachment) (*ChatMessage, error)

	// ListChatMessages returns messages in chronological order.
	ListChatMessages(ctx context.Context, chatID int64) ([]*ChatMessage, error)
}

// ServerStore handles server, membership and role persistence.
type ServerStore interface {
	// CreateServer creates a server and an owner membership.
	CreateServer(ctx context.Context, name, shortID string, ownerID int64) (*Server, error)

	// GetServerByID retrieves a server by ID.
	GetServerByID(ctx context.Context, id int64) (*Server, error)

	// GetServerByShortID retrieves a server by its short id.
	GetServerByShortID(ctx context.Context, shortID string) (*Server, error)

	// UpdateServer updates name, description and icon.
	UpdateServer(ctx context.Context, srv *Server) error

	// DeleteServer removes a server and its channels, roles and memberships.
	DeleteServer(ctx context.Context, id int64) error

	// AddMember creates a membership for a user.
	AddMember(ctx context.Context, serverID, userID int64, nickname string) (*Membership, error)

	// GetMembership retrieves the membership of a user in a server, with roles.
	GetMembership(ctx context.Context, serverID, userID int64) (*Membership, error)

	// ListMembers lists all memberships of a server, with roles.
	ListMembers(ctx context.Context, serverID int64) ([]*Membership, error)

	// CreateRole creates a role in a server.
	CreateRole(ctx context.Context, serverID int64, name string) (*Role, error)

	// AssignRole grants a role to a membership.
	AssignRole(ctx context.Context, membershipID, roleID int64) error
}

// ChannelStore handles channel persistence.
type ChannelStore interface {
	// CreateChannel creates a channel in a server.
	CreateChannel(ctx context.Context, serverID int64, name string, order int, disallowedRoleIDs []int64) (*Channel, error)

	// GetChannel retrieves a channel by ID.
	GetChannel(ctx context.Context, id int64) (*Channel, error)

	// ListChannels lists all channels of a server ordered by their order field.
	ListChannels(ctx context.Context, serverID int64) ([]*Channel, error)

	// UpdateChannel updates name, order and disallowed roles.
	UpdateChannel(ctx context.Context, ch *Channel) error

	// DeleteChannel removes a channel and its messages.
	DeleteChannel(ctx context.Context, id int64) error
}

// MessageStore handles channel message persistence.
type MessageStore interface {
	// CreateChannelMessage persists a message attributed to a membership.
	CreateChannelMessage(ctx context.Context, channelID, memberID int64, text string, attachments []Attachment) (*ChannelMessage, error)

	// GetChannelMessage retrieves a message by ID.
	GetChannelMessage(ctx context.Context, id int64) (*ChannelMessage, error)

	// ListChannelMessages returns up to limit messages, most recent first.
	ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]*ChannelMessage, error)

	// DeleteChannelMessage removes a message and returns its attachments so the
	// caller can clean up stored files.
	DeleteChannelMessage(ctx context.Context, id int64) ([]Attachment, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	ServerStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
