package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/ratelimit"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/store"
	"github.com/driftchat/drift-server/internal/store/sqlite"
)

type env struct {
	store      *sqlite.SQLiteStore
	registry   *rtc.Registry
	dispatcher *rtc.Dispatcher

	alice, bob, carol *store.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	alice, _ := st.CreateUser(ctx, "alice", "Alice")
	bob, _ := st.CreateUser(ctx, "bob", "Bob")
	carol, _ := st.CreateUser(ctx, "carol", "Carol")

	logger := zerolog.Nop()
	resolver := access.NewResolver(st)
	registry := rtc.NewRegistry(&logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewLocalStore(), 1000, time.Minute, &logger)
	dispatcher := rtc.NewDispatcher(limiter, &logger)
	New(st, resolver, registry, 50, &logger).Register(dispatcher)

	return &env{
		store:      st,
		registry:   registry,
		dispatcher: dispatcher,
		alice:      alice,
		bob:        bob,
		carol:      carol,
	}
}

func dispatch(e *env, s *rtc.Session, id int64, event string, data any) {
	raw, _ := json.Marshal(data)
	e.dispatcher.Dispatch(context.Background(), s, rtc.Inbound{ID: id, Event: event, Data: raw})
}

func nextFrame(t *testing.T, s *rtc.Session) rtc.Outbound {
	t.Helper()
	select {
	case o, ok := <-s.Outbound():
		if !ok {
			t.Fatalf("outbound closed")
		}
		return o
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame received")
	}
	return rtc.Outbound{}
}

func expectSilence(t *testing.T, s *rtc.Session) {
	t.Helper()
	select {
	case o := <-s.Outbound():
		t.Fatalf("unexpected frame: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
}

func decodeData(t *testing.T, frame rtc.Outbound, dst any) {
	t.Helper()
	raw, err := json.Marshal(frame.Data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("unmarshal frame data: %v", err)
	}
}

func TestChatJoin_AckHasOtherParticipantAndHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	chat, _ := e.store.CreateDirectChat(ctx, []int64{e.alice.ID, e.bob.ID})
	s := rtc.NewSession(e.alice.ID, "")

	dispatch(e, s, 1, rtc.EventChatJoin, chatRef{ChatID: chat.ID})

	frame := nextFrame(t, s)
	if frame.Type != rtc.FrameAck || frame.Error != nil {
		t.Fatalf("expected success ack, got %+v", frame)
	}
	var ack ChatJoinAck
	decodeData(t, frame, &ack)
	if ack.WithUser != "Bob" || ack.WithID != e.bob.ID {
		t.Fatalf("expected Bob as the other participant, got %+v", ack)
	}
	if len(ack.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(ack.Messages))
	}
	if !e.registry.InRoom(s, rtc.ChatRoom(chat.ID)) {
		t.Fatalf("session not joined to chat room")
	}
}

func TestChatJoin_NonParticipantNeverJoinsRoom(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	chat, _ := e.store.CreateDirectChat(ctx, []int64{e.alice.ID, e.bob.ID})
	s := rtc.NewSession(e.carol.ID, "")

	dispatch(e, s, 1, rtc.EventChatJoin, chatRef{ChatID: chat.ID})

	frame := nextFrame(t, s)
	if frame.Error == nil || frame.Error.Kind != rtc.ErrKindUnauthorized {
		t.Fatalf("expected UNAUTHORIZED ack, got %+v", frame)
	}
	if e.registry.InRoom(s, rtc.ChatRoom(chat.ID)) {
		t.Fatalf("unauthorized session must not enter the room")
	}
}

func TestMessageSend_EmptyTextNeverPersistsOrPublishes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	chat, _ := e.store.CreateDirectChat(ctx, []int64{e.alice.ID, e.bob.ID})

	sender := rtc.NewSession(e.alice.ID, "")
	watcher := rtc.NewSession(e.bob.ID, "")
	e.registry.Join(watcher, rtc.ChatRoom(chat.ID))

	for _, text := range []string{"", "   ", "\n\t"} {
		dispatch(e, sender, 1, rtc.EventMessageSend, sendMessageData{ChatID: chat.ID, Text: text})

		frame := nextFrame(t, sender)
		if frame.Error == nil || frame.Error.Kind != rtc.ErrKindBadRequest || frame.Error.Message != "text is required" {
			t.Fatalf("expected BAD_REQUEST text is required, got %+v", frame)
		}
	}

	expectSilence(t, watcher)
	msgs, _ := e.store.ListChatMessages(ctx, chat.ID)
	if len(msgs) != 0 {
		t.Fatalf("message persisted despite validation failure")
	}
}

func TestMessageSend_SelfAckOtherBroadcast(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	chat, _ := e.store.CreateDirectChat(ctx, []int64{e.alice.ID, e.bob.ID})

	sender := rtc.NewSession(e.alice.ID, "")
	recipient := rtc.NewSession(e.bob.ID, "")
	e.registry.Join(sender, rtc.ChatRoom(chat.ID))
	e.registry.Join(recipient, rtc.ChatRoom(chat.ID))

	dispatch(e, sender, 2, rtc.EventMessageSend, sendMessageData{ChatID: chat.ID, Text: "hi"})

	ack := nextFrame(t, sender)
	var self rtc.ChatMessageView
	decodeData(t, ack, &self)
	if self.Sender != rtc.SenderSelf || self.Text != "hi" {
		t.Fatalf("expected self-tagged ack, got %+v", self)
	}

	broadcast := nextFrame(t, recipient)
	if broadcast.Type != rtc.FrameEvent || broadcast.Event != rtc.EventMessageNew {
		t.Fatalf("expected message:new broadcast, got %+v", broadcast)
	}
	var other rtc.ChatMessageView
	decodeData(t, broadcast, &other)
	if other.Sender != rtc.SenderOther || other.Text != "hi" {
		t.Fatalf("expected other-tagged broadcast, got %+v", other)
	}

	// The sender receives only the ack, never its own broadcast.
	expectSilence(t, sender)
}

func TestChatLeave_StopsBroadcasts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	chat, _ := e.store.CreateDirectChat(ctx, []int64{e.alice.ID, e.bob.ID})

	sender := rtc.NewSession(e.alice.ID, "")
	leaver := rtc.NewSession(e.bob.ID, "")
	e.registry.Join(sender, rtc.ChatRoom(chat.ID))
	e.registry.Join(leaver, rtc.ChatRoom(chat.ID))

	dispatch(e, leaver, 0, rtc.EventChatLeave, chatRef{ChatID: chat.ID})
	dispatch(e, sender, 1, rtc.EventMessageSend, sendMessageData{ChatID: chat.ID, Text: "anyone?"})

	nextFrame(t, sender) // ack
	expectSilence(t, leaver)
}

func TestServerSubscribe_FiltersChannelsByRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv, _ := e.store.CreateServer(ctx, "general", "srv-1", e.alice.ID)
	muted, _ := e.store.CreateRole(ctx, srv.ID, "muted")
	_, _ = e.store.CreateChannel(ctx, srv.ID, "lobby", 0, nil)
	_, _ = e.store.CreateChannel(ctx, srv.ID, "staff", 1, []int64{muted.ID})

	member, _ := e.store.AddMember(ctx, srv.ID, e.bob.ID, "")
	_ = e.store.AssignRole(ctx, member.ID, muted.ID)

	s := rtc.NewSession(e.bob.ID, "")
	dispatch(e, s, 1, rtc.EventServerSubscribe, serverRef{ServerID: fmt.Sprint(srv.ID)})

	frame := nextFrame(t, s)
	if frame.Error != nil {
		t.Fatalf("expected success, got %+v", frame)
	}
	var view rtc.ServerView
	decodeData(t, frame, &view)
	if view.Name != "general" || len(view.Members) != 2 {
		t.Fatalf("unexpected server view: %+v", view)
	}
	if len(view.Channels) != 1 || view.Channels[0].Name != "lobby" {
		t.Fatalf("expected role-filtered channel list, got %+v", view.Channels)
	}
	if !e.registry.InRoom(s, rtc.ServerRoom(srv.ID)) {
		t.Fatalf("session not joined to server room")
	}
}

func TestServerSubscribe_NonMemberUnauthorized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv, _ := e.store.CreateServer(ctx, "general", "srv-1", e.alice.ID)

	s := rtc.NewSession(e.carol.ID, "")
	dispatch(e, s, 1, rtc.EventServerSubscribe, serverRef{ServerID: fmt.Sprint(srv.ID)})

	frame := nextFrame(t, s)
	if frame.Error == nil || frame.Error.Kind != rtc.ErrKindUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %+v", frame)
	}
}

func TestServerUnsubscribe_FailuresAreSilent(t *testing.T) {
	e := newEnv(t)

	s := rtc.NewSession(e.carol.ID, "")
	dispatch(e, s, 0, rtc.EventServerUnsubscribe, serverRef{ServerID: "999"})

	expectSilence(t, s)
}

func TestChannelSubscribe_HistoryBoundedChronological(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv, _ := e.store.CreateServer(ctx, "general", "srv-1", e.alice.ID)
	ch, _ := e.store.CreateChannel(ctx, srv.ID, "lobby", 0, nil)
	member, _ := e.store.GetMembership(ctx, srv.ID, e.alice.ID)

	for i := 0; i < 60; i++ {
		if _, err := e.store.CreateChannelMessage(ctx, ch.ID, member.ID, fmt.Sprintf("m%d", i), nil); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	s := rtc.NewSession(e.alice.ID, "")
	dispatch(e, s, 1, rtc.EventChannelMsgSubscribe, channelRef{ChannelID: ch.ID})

	frame := nextFrame(t, s)
	var ack ChannelHistoryAck
	decodeData(t, frame, &ack)
	if len(ack.Messages) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(ack.Messages))
	}
	if ack.Messages[0].Text != "m10" || ack.Messages[49].Text != "m59" {
		t.Fatalf("history not chronological: first=%q last=%q", ack.Messages[0].Text, ack.Messages[49].Text)
	}
}

func TestChannelSubscribe_DisallowedRoleUnauthorized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv, _ := e.store.CreateServer(ctx, "general", "srv-1", e.alice.ID)
	muted, _ := e.store.CreateRole(ctx, srv.ID, "muted")
	ch, _ := e.store.CreateChannel(ctx, srv.ID, "staff", 0, []int64{muted.ID})

	member, _ := e.store.AddMember(ctx, srv.ID, e.bob.ID, "")
	_ = e.store.AssignRole(ctx, member.ID, muted.ID)

	s := rtc.NewSession(e.bob.ID, "")
	dispatch(e, s, 1, rtc.EventChannelMsgSubscribe, channelRef{ChannelID: ch.ID})

	frame := nextFrame(t, s)
	if frame.Error == nil || frame.Error.Kind != rtc.ErrKindUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %+v", frame)
	}
	if e.registry.InRoom(s, rtc.ChannelMessagesRoom(ch.ID)) {
		t.Fatalf("disallowed session must not enter channel room")
	}
}

func TestChannelMessageSend_AttributedToMembership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	srv, _ := e.store.CreateServer(ctx, "general", "srv-1", e.alice.ID)
	ch, _ := e.store.CreateChannel(ctx, srv.ID, "lobby", 0, nil)
	member, _ := e.store.AddMember(ctx, srv.ID, e.bob.ID, "Bobby")

	sender := rtc.NewSession(e.bob.ID, "")
	watcher := rtc.NewSession(e.alice.ID, "")
	e.registry.Join(watcher, rtc.ChannelMessagesRoom(ch.ID))

	dispatch(e, sender, 1, rtc.EventChannelMessageSend, channelSendData{ChannelID: ch.ID, Text: "hello"})

	ack := nextFrame(t, sender)
	if ack.Error != nil {
		t.Fatalf("expected success, got %+v", ack)
	}
	var view rtc.ChannelMessageView
	decodeData(t, ack, &view)
	if view.MemberID != member.ID || view.AuthorName != "Bobby" {
		t.Fatalf("expected membership attribution, got %+v", view)
	}

	broadcast := nextFrame(t, watcher)
	if broadcast.Event != rtc.EventChannelMessageNew {
		t.Fatalf("expected channelMessage:new, got %+v", broadcast)
	}
}
