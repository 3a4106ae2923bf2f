package rtc

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the subscription and broadcast substrate: named rooms of live
// sessions. Membership is purely a function of Join/Leave calls plus
// disconnect cleanup; nothing here survives a dead connection or a restart.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
	log   *zerolog.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[*Session]struct{}),
		log:   logger,
	}
}

// Join subscribes the session to a room. Idempotent.
func (r *Registry) Join(s *Session, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomKey]
	if !ok {
		room = make(map[*Session]struct{})
		r.rooms[roomKey] = room
	}
	room[s] = struct{}{}
	s.rooms[roomKey] = struct{}{}
}

// Leave removes the session from a room. Leaving a room the session never
// joined is a no-op.
func (r *Registry) Leave(s *Session, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s, roomKey)
}

func (r *Registry) leaveLocked(s *Session, roomKey string) {
	room, ok := r.rooms[roomKey]
	if !ok {
		return
	}
	delete(room, s)
	delete(s.rooms, roomKey)
	if len(room) == 0 {
		delete(r.rooms, roomKey)
	}
}

// Publish delivers an event to every session currently in the room, except
// the originating session when one is given (the originator gets its
// confirmation via the ack instead of a duplicate broadcast).
func (r *Registry) Publish(roomKey, event string, data any, except *Session) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomKey]
	if !ok {
		return
	}
	frame := Outbound{Type: FrameEvent, Event: event, Data: data}
	for s := range room {
		if s == except {
			continue
		}
		if !s.send(frame) && r.log != nil {
			r.log.Debug().Str("room", roomKey).Str("event", event).Str("session_id", s.ID).
				Msg("dropped broadcast for slow or closing session")
		}
	}
}

// Disconnect removes the session from every room it joined and closes it.
// The removal holds the registry write lock, so no publish started after
// cleanup begins can target this session.
func (r *Registry) Disconnect(s *Session) {
	r.mu.Lock()
	for roomKey := range s.rooms {
		r.leaveLocked(s, roomKey)
	}
	r.mu.Unlock()

	s.close()
}

// InRoom reports whether the session is currently subscribed to the room.
func (r *Registry) InRoom(s *Session, roomKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := s.rooms[roomKey]
	return ok
}

// RoomSize returns how many sessions are subscribed to the room.
func (r *Registry) RoomSize(roomKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomKey])
}
