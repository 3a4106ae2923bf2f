package rtc

import (
	"sync"

	"github.com/google/uuid"
)

const sessionBuffer = 32

// Session is the typed per-connection record. The user id is bound once at
// handshake and never changes; re-authentication requires a new connection.
type Session struct {
	ID         string
	UserID     int64
	RemoteAddr string

	// rooms is guarded by the owning Registry's lock.
	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
	out    chan Outbound
}

// NewSession creates a session for an authenticated connection.
func NewSession(userID int64, remoteAddr string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		RemoteAddr: remoteAddr,
		rooms:      make(map[string]struct{}),
		out:        make(chan Outbound, sessionBuffer),
	}
}

// Outbound is the stream of frames to write to the connection. It is closed
// when the session is torn down.
func (s *Session) Outbound() <-chan Outbound {
	return s.out
}

// send queues a frame for the connection. Frames to a closed session are
// dropped, as are frames to a slow consumer whose buffer is full.
func (s *Session) send(o Outbound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- o:
		return true
	default:
		return false
	}
}

// close marks the session dead and closes its outbound stream. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}
