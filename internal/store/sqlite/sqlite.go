package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driftchat/drift-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	username     TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	avatar_url   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS direct_chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_a     INTEGER NOT NULL REFERENCES users(id),
	user_b     INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (user_a <> user_b)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL REFERENCES direct_chats(id) ON DELETE CASCADE,
	author_id  INTEGER NOT NULL REFERENCES users(id),
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS servers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	short_id    TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon_url    TEXT NOT NULL DEFAULT '',
	owner_id    INTEGER NOT NULL REFERENCES users(id),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memberships (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	server_id INTEGER NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
	user_id   INTEGER NOT NULL REFERENCES users(id),
	nickname  TEXT NOT NULL DEFAULT '',
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (server_id, user_id)
);

CREATE TABLE IF NOT EXISTS roles (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	server_id INTEGER NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
	name      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS membership_roles (
	membership_id INTEGER NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
	role_id       INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	PRIMARY KEY (membership_id, role_id)
);

CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	server_id  INTEGER NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	ordering   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_disallowed_roles (
	channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	role_id    INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	PRIMARY KEY (channel_id, role_id)
);

CREATE TABLE IF NOT EXISTS channel_messages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id    INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	membership_id INTEGER NOT NULL REFERENCES memberships(id),
	body          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attachments (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_message_id    INTEGER REFERENCES chat_messages(id) ON DELETE CASCADE,
	channel_message_id INTEGER REFERENCES channel_messages(id) ON DELETE CASCADE,
	key                TEXT NOT NULL,
	url                TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName string) (*store.User, error) {
	if displayName == "" {
		displayName = username
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name) VALUES (?, ?)`, username, displayName)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, avatar_url, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// ==== ChatStore implementation ====

// CreateDirectChat creates a chat between exactly two users.
func (s *SQLiteStore) CreateDirectChat(ctx context.Context, participants []int64) (*store.DirectChat, error) {
	if len(participants) != 2 || participants[0] == participants[1] {
		return nil, store.ErrInvalidParticipants
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO direct_chats (user_a, user_b) VALUES (?, ?)`, participants[0], participants[1])
	if err != nil {
		return nil, fmt.Errorf("insert direct chat: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetDirectChat(ctx, id)
}

// GetDirectChat retrieves a chat by ID.
func (s *SQLiteStore) GetDirectChat(ctx context.Context, id int64) (*store.DirectChat, error) {
	var c store.DirectChat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_a, user_b, created_at FROM direct_chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select direct chat: %w", err)
	}
	return &c, nil
}

// CreateChatMessage persists a direct message.
func (s *SQLiteStore) CreateChatMessage(ctx context.Context, chatID, authorID int64, text string, attachments []store.Attachment) (*store.ChatMessage, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (chat_id, author_id, body) VALUES (?, ?, ?)`, chatID, authorID, text)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	for _, a := range attachments {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO attachments (chat_message_id, key, url) VALUES (?, ?, ?)`, id, a.Key, a.URL); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}
	return s.getChatMessage(ctx, id)
}

func (s *SQLiteStore) getChatMessage(ctx context.Context, id int64) (*store.ChatMessage, error) {
	var m store.ChatMessage
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.chat_id, m.author_id, u.display_name, m.body, m.created_at
		FROM chat_messages m JOIN users u ON u.id = m.author_id
		WHERE m.id = ?`, id).
		Scan(&m.ID, &m.ChatID, &m.AuthorID, &m.AuthorName, &m.Text, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chat message: %w", err)
	}
	if err := s.loadAttachments(ctx, "chat_message_id", m.ID, &m.Attachments); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListChatMessages returns messages in chronological order.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, chatID int64) ([]*store.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.chat_id, m.author_id, u.display_name, m.body, m.created_at
		FROM chat_messages m JOIN users u ON u.id = m.author_id
		WHERE m.chat_id = ?
		ORDER BY m.id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}
	defer rows.Close()

	var out []*store.ChatMessage
	for rows.Next() {
		var m store.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.AuthorID, &m.AuthorName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range out {
		if err := s.loadAttachments(ctx, "chat_message_id", m.ID, &m.Attachments); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ==== ServerStore implementation ====

// CreateServer creates a server and an owner membership.
func (s *SQLiteStore) CreateServer(ctx context.Context, name, shortID string, ownerID int64) (*store.Server, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO servers (short_id, name, owner_id) VALUES (?, ?, ?)`, shortID, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert server: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	if _, err := s.AddMember(ctx, id, ownerID, ""); err != nil {
		return nil, err
	}
	return s.GetServerByID(ctx, id)
}

func (s *SQLiteStore) scanServer(row *sql.Row) (*store.Server, error) {
	var srv store.Server
	err := row.Scan(&srv.ID, &srv.ShortID, &srv.Name, &srv.Description, &srv.IconURL, &srv.OwnerID, &srv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select server: %w", err)
	}
	return &srv, nil
}

// GetServerByID retrieves a server by ID.
func (s *SQLiteStore) GetServerByID(ctx context.Context, id int64) (*store.Server, error) {
	return s.scanServer(s.db.QueryRowContext(ctx,
		`SELECT id, short_id, name, description, icon_url, owner_id, created_at FROM servers WHERE id = ?`, id))
}

// GetServerByShortID retrieves a server by its short id.
func (s *SQLiteStore) GetServerByShortID(ctx context.Context, shortID string) (*store.Server, error) {
	return s.scanServer(s.db.QueryRowContext(ctx,
		`SELECT id, short_id, name, description, icon_url, owner_id, created_at FROM servers WHERE short_id = ?`, shortID))
}

// UpdateServer updates name, description and icon.
func (s *SQLiteStore) UpdateServer(ctx context.Context, srv *store.Server) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE servers SET name = ?, description = ?, icon_url = ? WHERE id = ?`,
		srv.Name, srv.Description, srv.IconURL, srv.ID)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteServer removes a server and its dependents.
func (s *SQLiteStore) DeleteServer(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddMember creates a membership for a user.
func (s *SQLiteStore) AddMember(ctx context.Context, serverID, userID int64, nickname string) (*store.Membership, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (server_id, user_id, nickname) VALUES (?, ?, ?)`, serverID, userID, nickname)
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	return s.GetMembership(ctx, serverID, userID)
}

// GetMembership retrieves the membership of a user in a server, with roles.
func (s *SQLiteStore) GetMembership(ctx context.Context, serverID, userID int64) (*store.Membership, error) {
	var m store.Membership
	err := s.db.QueryRowContext(ctx,
		`SELECT id, server_id, user_id, nickname, joined_at FROM memberships WHERE server_id = ? AND user_id = ?`,
		serverID, userID).
		Scan(&m.ID, &m.ServerID, &m.UserID, &m.Nickname, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select membership: %w", err)
	}
	if err := s.loadRoles(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) loadRoles(ctx context.Context, m *store.Membership) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.server_id, r.name
		FROM membership_roles mr JOIN roles r ON r.id = mr.role_id
		WHERE mr.membership_id = ?`, m.ID)
	if err != nil {
		return fmt.Errorf("select membership roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r store.Role
		if err := rows.Scan(&r.ID, &r.ServerID, &r.Name); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		m.Roles = append(m.Roles, r)
	}
	return rows.Err()
}

// ListMembers lists all memberships of a server, with roles.
func (s *SQLiteStore) ListMembers(ctx context.Context, serverID int64) ([]*store.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, server_id, user_id, nickname, joined_at FROM memberships WHERE server_id = ? ORDER BY id ASC`,
		serverID)
	if err != nil {
		return nil, fmt.Errorf("select memberships: %w", err)
	}
	defer rows.Close()

	var out []*store.Membership
	for rows.Next() {
		var m store.Membership
		if err := rows.Scan(&m.ID, &m.ServerID, &m.UserID, &m.Nickname, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range out {
		if err := s.loadRoles(ctx, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateRole creates a role in a server.
func (s *SQLiteStore) CreateRole(ctx context.Context, serverID int64, name string) (*store.Role, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (server_id, name) VALUES (?, ?)`, serverID, name)
	if err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &store.Role{ID: id, ServerID: serverID, Name: name}, nil
}

// AssignRole grants a role to a membership.
func (s *SQLiteStore) AssignRole(ctx context.Context, membershipID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO membership_roles (membership_id, role_id) VALUES (?, ?)`, membershipID, roleID)
	if err != nil {
		return fmt.Errorf("insert membership role: %w", err)
	}
	return nil
}

// ==== ChannelStore implementation ====

// CreateChannel creates a channel in a server.
func (s *SQLiteStore) CreateChannel(ctx context.Context, serverID int64, name string, order int, disallowedRoleIDs []int64) (*store.Channel, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (server_id, name, ordering) VALUES (?, ?, ?)`, serverID, name, order)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	for _, roleID := range disallowedRoleIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO channel_disallowed_roles (channel_id, role_id) VALUES (?, ?)`, id, roleID); err != nil {
			return nil, fmt.Errorf("insert channel disallowed role: %w", err)
		}
	}
	return s.GetChannel(ctx, id)
}

// GetChannel retrieves a channel by ID.
func (s *SQLiteStore) GetChannel(ctx context.Context, id int64) (*store.Channel, error) {
	var ch store.Channel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, server_id, name, ordering, created_at FROM channels WHERE id = ?`, id).
		Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Order, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select channel: %w", err)
	}
	if err := s.loadDisallowedRoles(ctx, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *SQLiteStore) loadDisallowedRoles(ctx context.Context, ch *store.Channel) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role_id FROM channel_disallowed_roles WHERE channel_id = ?`, ch.ID)
	if err != nil {
		return fmt.Errorf("select channel disallowed roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int64
		if err := rows.Scan(&roleID); err != nil {
			return fmt.Errorf("scan disallowed role: %w", err)
		}
		ch.DisallowedRoleIDs = append(ch.DisallowedRoleIDs, roleID)
	}
	return rows.Err()
}

// ListChannels lists all channels of a server ordered by their order field.
func (s *SQLiteStore) ListChannels(ctx context.Context, serverID int64) ([]*store.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, server_id, name, ordering, created_at FROM channels WHERE server_id = ? ORDER BY ordering ASC, id ASC`,
		serverID)
	if err != nil {
		return nil, fmt.Errorf("select channels: %w", err)
	}
	defer rows.Close()

	var out []*store.Channel
	for rows.Next() {
		var ch store.Channel
		if err := rows.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Order, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, ch := range out {
		if err := s.loadDisallowedRoles(ctx, ch); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateChannel updates name, order and disallowed roles.
func (s *SQLiteStore) UpdateChannel(ctx context.Context, ch *store.Channel) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE channels SET name = ?, ordering = ? WHERE id = ?`, ch.Name, ch.Order, ch.ID)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_disallowed_roles WHERE channel_id = ?`, ch.ID); err != nil {
		return fmt.Errorf("clear channel disallowed roles: %w", err)
	}
	for _, roleID := range ch.DisallowedRoleIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO channel_disallowed_roles (channel_id, role_id) VALUES (?, ?)`, ch.ID, roleID); err != nil {
			return fmt.Errorf("insert channel disallowed role: %w", err)
		}
	}
	return nil
}

// DeleteChannel removes a channel and its messages.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== MessageStore implementation ====

// CreateChannelMessage persists a message attributed to a membership.
func (s *SQLiteStore) CreateChannelMessage(ctx context.Context, channelID, memberID int64, text string, attachments []store.Attachment) (*store.ChannelMessage, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_messages (channel_id, membership_id, body) VALUES (?, ?, ?)`, channelID, memberID, text)
	if err != nil {
		return nil, fmt.Errorf("insert channel message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	for _, a := range attachments {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO attachments (channel_message_id, key, url) VALUES (?, ?, ?)`, id, a.Key, a.URL); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}
	return s.getChannelMessage(ctx, id)
}

const channelMessageSelect = `
	SELECT m.id, m.channel_id, m.membership_id, mb.user_id,
	       CASE WHEN mb.nickname <> '' THEN mb.nickname ELSE u.display_name END,
	       m.body, m.created_at
	FROM channel_messages m
	JOIN memberships mb ON mb.id = m.membership_id
	JOIN users u ON u.id = mb.user_id`

func (s *SQLiteStore) getChannelMessage(ctx context.Context, id int64) (*store.ChannelMessage, error) {
	var m store.ChannelMessage
	err := s.db.QueryRowContext(ctx, channelMessageSelect+` WHERE m.id = ?`, id).
		Scan(&m.ID, &m.ChannelID, &m.MemberID, &m.AuthorID, &m.AuthorName, &m.Text, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select channel message: %w", err)
	}
	if err := s.loadAttachments(ctx, "channel_message_id", m.ID, &m.Attachments); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetChannelMessage retrieves a message by ID.
func (s *SQLiteStore) GetChannelMessage(ctx context.Context, id int64) (*store.ChannelMessage, error) {
	return s.getChannelMessage(ctx, id)
}

// ListChannelMessages returns up to limit messages, most recent first.
func (s *SQLiteStore) ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]*store.ChannelMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		channelMessageSelect+` WHERE m.channel_id = ? ORDER BY m.id DESC LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("select channel messages: %w", err)
	}
	defer rows.Close()

	var out []*store.ChannelMessage
	for rows.Next() {
		var m store.ChannelMessage
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.MemberID, &m.AuthorID, &m.AuthorName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range out {
		if err := s.loadAttachments(ctx, "channel_message_id", m.ID, &m.Attachments); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteChannelMessage removes a message and returns its attachments.
func (s *SQLiteStore) DeleteChannelMessage(ctx context.Context, id int64) ([]store.Attachment, error) {
	var attachments []store.Attachment
	if err := s.loadAttachments(ctx, "channel_message_id", id, &attachments); err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM channel_messages WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete channel message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return attachments, nil
}

func (s *SQLiteStore) loadAttachments(ctx context.Context, parentColumn string, parentID int64, dst *[]store.Attachment) error {
	if !strings.HasSuffix(parentColumn, "_message_id") {
		return fmt.Errorf("unexpected attachment parent column %q", parentColumn)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, url, created_at FROM attachments WHERE `+parentColumn+` = ? ORDER BY id ASC`, parentID)
	if err != nil {
		return fmt.Errorf("select attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a store.Attachment
		if err := rows.Scan(&a.ID, &a.Key, &a.URL, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		*dst = append(*dst, a)
	}
	return rows.Err()
}
