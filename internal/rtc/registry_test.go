package rtc

import (
	"sync"
	"testing"
	"time"
)

func recvFrame(t *testing.T, s *Session) Outbound {
	t.Helper()
	select {
	case o, ok := <-s.Outbound():
		if !ok {
			t.Fatalf("outbound stream closed")
		}
		return o
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame received")
	}
	return Outbound{}
}

func expectNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case o, ok := <-s.Outbound():
		if ok {
			t.Fatalf("unexpected frame: %+v", o)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_PublishReachesMembersExceptOriginator(t *testing.T) {
	reg := NewRegistry(nil)

	a := NewSession(1, "127.0.0.1:1000")
	b := NewSession(2, "127.0.0.1:1001")
	c := NewSession(3, "127.0.0.1:1002")

	reg.Join(a, ChatRoom(5))
	reg.Join(b, ChatRoom(5))
	reg.Join(c, ChatRoom(6))

	reg.Publish(ChatRoom(5), EventMessageNew, "hello", a)

	frame := recvFrame(t, b)
	if frame.Type != FrameEvent || frame.Event != EventMessageNew || frame.Data != "hello" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	expectNoFrame(t, a)
	expectNoFrame(t, c)
}

func TestRegistry_JoinIdempotentLeaveNoop(t *testing.T) {
	reg := NewRegistry(nil)
	s := NewSession(1, "")

	reg.Join(s, ServerRoom(1))
	reg.Join(s, ServerRoom(1))
	if got := reg.RoomSize(ServerRoom(1)); got != 1 {
		t.Fatalf("expected room size 1 after double join, got %d", got)
	}

	// Leaving a room never joined must not panic or change state.
	reg.Leave(s, ServerRoom(99))
	if !reg.InRoom(s, ServerRoom(1)) {
		t.Fatalf("session dropped from joined room")
	}

	reg.Leave(s, ServerRoom(1))
	if reg.InRoom(s, ServerRoom(1)) || reg.RoomSize(ServerRoom(1)) != 0 {
		t.Fatalf("session still in room after leave")
	}
}

func TestRegistry_DisconnectRemovesFromAllRooms(t *testing.T) {
	reg := NewRegistry(nil)
	s := NewSession(1, "")
	other := NewSession(2, "")

	reg.Join(s, ChatRoom(1))
	reg.Join(s, ServerRoom(2))
	reg.Join(s, ChannelMessagesRoom(3))
	reg.Join(other, ChatRoom(1))

	reg.Disconnect(s)

	for _, key := range []string{ChatRoom(1), ServerRoom(2), ChannelMessagesRoom(3)} {
		if reg.InRoom(s, key) {
			t.Fatalf("session still in %s after disconnect", key)
		}
	}

	// Publishing afterwards never targets the disconnected session.
	reg.Publish(ChatRoom(1), EventMessageNew, "late", nil)
	frame := recvFrame(t, other)
	if frame.Data != "late" {
		t.Fatalf("surviving member missed broadcast: %+v", frame)
	}
	if _, ok := <-s.Outbound(); ok {
		t.Fatalf("disconnected session received a frame")
	}
}

func TestRegistry_ConcurrentPublishAndDisconnect(t *testing.T) {
	reg := NewRegistry(nil)

	stay := NewSession(1, "")
	reg.Join(stay, ChatRoom(1))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		s := NewSession(int64(i+10), "")
		reg.Join(s, ChatRoom(1))

		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Publish(ChatRoom(1), EventMessageNew, "x", nil)
		}()
		go func(s *Session) {
			defer wg.Done()
			reg.Disconnect(s)
		}(s)
	}
	wg.Wait()

	if got := reg.RoomSize(ChatRoom(1)); got != 1 {
		t.Fatalf("expected only the surviving session, got %d", got)
	}
}

func TestSession_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	reg := NewRegistry(nil)
	s := NewSession(1, "")
	reg.Join(s, ChatRoom(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sessionBuffer*2; i++ {
			reg.Publish(ChatRoom(1), EventMessageNew, i, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on slow consumer")
	}
}
