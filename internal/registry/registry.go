// Package registry keeps the in-memory directory of live connections, their
// room memberships and voice-call flags. It owns no transport: each session
// exposes an outbound frame channel that the WebSocket layer drains.
package registry

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/proto"
)

// outBuffer bounds the per-session outbound queue. A slow consumer drops
// frames instead of stalling the relay.
const outBuffer = 256

// Session ties a live connection to an authenticated user, the rooms it has
// joined and its call state. All mutable state is guarded by the registry
// lock.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string

	rooms  map[int64]struct{}
	inCall bool
	muted  bool

	out    chan []byte
	closed bool
}

// Out returns the outbound frame channel. It is closed when the session is
// removed from the registry.
func (s *Session) Out() <-chan []byte { return s.out }

// Registry is the per-process session directory.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	log      *zap.Logger
}

// New constructs an empty registry.
func New(log *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		log:      log,
	}
}

// Add registers a new session for an authenticated user.
func (r *Registry) Add(userID uuid.UUID, username string) *Session {
	s := &Session{
		ID:       uuid.Must(uuid.NewV4()),
		UserID:   userID,
		Username: username,
		rooms:    make(map[int64]struct{}),
		out:      make(chan []byte, outBuffer),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Remove drops the session and closes its outbound channel. It returns the
// rooms the session had joined and whether it was in a call, so the caller
// can notify the remaining members.
func (r *Registry) Remove(s *Session) (rooms []int64, wasInCall bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return nil, false
	}
	delete(r.sessions, s.ID)
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	wasInCall = s.inCall
	s.closed = true
	close(s.out)
	return rooms, wasInCall
}

// Join adds the session to a room.
func (r *Registry) Join(s *Session, roomID int64) {
	r.mu.Lock()
	s.rooms[roomID] = struct{}{}
	r.mu.Unlock()
}

// Leave removes the session from a room.
func (r *Registry) Leave(s *Session, roomID int64) {
	r.mu.Lock()
	delete(s.rooms, roomID)
	r.mu.Unlock()
}

// InRoom reports whether the session has joined the room.
func (r *Registry) InRoom(s *Session, roomID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// SetCallState mutates the session's voice-call flags.
func (r *Registry) SetCallState(s *Session, inCall, muted bool) {
	r.mu.Lock()
	s.inCall = inCall
	s.muted = muted
	r.mu.Unlock()
}

// CallState returns the session's voice-call flags.
func (r *Registry) CallState(s *Session) (inCall, muted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.inCall, s.muted
}

// RoomUsers returns the membership snapshot broadcast as room_users.
func (r *Registry) RoomUsers(roomID int64) []model.RoomUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []model.RoomUser{}
	for _, s := range r.sessions {
		if _, ok := s.rooms[roomID]; ok {
			users = append(users, model.RoomUser{
				UserID:   s.UserID,
				Username: s.Username,
				IsInCall: s.inCall,
				IsMuted:  s.muted,
			})
		}
	}
	return users
}

// CallParticipants returns the room members currently in the call.
func (r *Registry) CallParticipants(roomID int64) []proto.CallUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	parts := []proto.CallUser{}
	for _, s := range r.sessions {
		if _, ok := s.rooms[roomID]; ok && s.inCall {
			parts = append(parts, proto.CallUser{
				UserID:   s.UserID,
				Username: s.Username,
				IsMuted:  s.muted,
			})
		}
	}
	return parts
}

// FindCallPeer returns a session for userID that has joined the room and is
// in the call, or nil. Used as the rendezvous lookup for WebRTC signaling.
func (r *Registry) FindCallPeer(roomID int64, userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID != userID || !s.inCall {
			continue
		}
		if _, ok := s.rooms[roomID]; ok {
			return s
		}
	}
	return nil
}

// Broadcast sends payload to every room member matching pred (nil matches
// all). Sessions with a full outbound queue drop the frame.
func (r *Registry) Broadcast(roomID int64, pred func(*Session) bool, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if _, ok := s.rooms[roomID]; !ok {
			continue
		}
		if pred != nil && !pred(s) {
			continue
		}
		r.send(s, payload)
	}
}

// BroadcastToCall sends payload to every room member currently in the call,
// except exclude (nil excludes nobody).
func (r *Registry) BroadcastToCall(roomID int64, exclude *Session, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if _, ok := s.rooms[roomID]; !ok || !s.inCall {
			continue
		}
		if exclude != nil && s.ID == exclude.ID {
			continue
		}
		r.send(s, payload)
	}
}

// Send delivers payload to a single session.
func (r *Registry) Send(s *Session, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send(s, payload)
}

// send assumes the registry lock is held.
func (r *Registry) send(s *Session, payload []byte) {
	if s.closed {
		return
	}
	select {
	case s.out <- payload:
	default:
		r.log.Warn("dropping frame for slow session",
			zap.String("session", s.ID.String()),
			zap.String("user", s.UserID.String()),
		)
	}
}
