// Package relay dispatches inbound WebSocket frames: membership updates,
// shape add/delete fan-out, voice-call state and WebRTC rendezvous.
package relay

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/proto"
	"github.com/drawrhq/drawr/internal/registry"
	"github.com/drawrhq/drawr/internal/shape"
)

// ShapeLog is the durable log the relay writes through. Implementations are
// expected to be best-effort on delete: a missing id is not an error.
type ShapeLog interface {
	// Append persists one shape element keyed by its client-assigned id.
	Append(ctx context.Context, msg model.ChatMessage) error
	// Delete removes the durable record by id and room.
	Delete(ctx context.Context, roomID, shapeID int64) error
}

// Relay routes frames between room members and the durable log.
type Relay struct {
	reg *registry.Registry
	log ShapeLog
	lg  *zap.Logger
}

// New constructs a relay over the given registry and log.
func New(reg *registry.Registry, log ShapeLog, lg *zap.Logger) *Relay {
	return &Relay{reg: reg, log: log, lg: lg}
}

// HandleFrame processes one inbound payload for a session. A non-nil error
// is fatal to the connection (authorization violation); malformed frames are
// dropped with a warning and unknown types ignored.
func (r *Relay) HandleFrame(ctx context.Context, s *registry.Session, data []byte) error {
	f, err := proto.Decode(data)
	if err != nil {
		r.lg.Warn("dropping malformed frame",
			zap.String("user", s.UserID.String()),
			zap.Error(err),
		)
		return nil
	}

	switch f.Type {
	case proto.TypeJoinRoom:
		r.reg.Join(s, f.RoomID)
		r.broadcastRoomUsers(f.RoomID)
	case proto.TypeLeaveRoom:
		r.reg.Leave(s, f.RoomID)
		r.broadcastRoomUsers(f.RoomID)
	case proto.TypeChat:
		return r.handleChat(ctx, s, f, data)
	case proto.TypeDeleteMessage:
		return r.handleDelete(ctx, s, f, data)
	case proto.TypeJoinCall:
		r.handleJoinCall(s, f)
	case proto.TypeLeaveCall:
		r.handleLeaveCall(s, f)
	case proto.TypeToggleMute:
		r.handleToggleMute(s, f)
	case proto.TypeWebRTCOffer, proto.TypeWebRTCAnswer, proto.TypeWebRTCICECandidate:
		r.handleSignaling(s, f)
	default:
		r.lg.Warn("unknown frame type", zap.String("type", f.Type))
	}
	return nil
}

// Disconnect removes the session, notifies call peers of departure and
// refreshes membership in every room the session had joined.
func (r *Relay) Disconnect(s *registry.Session) {
	rooms, wasInCall := r.reg.Remove(s)
	for _, roomID := range rooms {
		if wasInCall {
			r.broadcastToCall(roomID, nil, proto.Frame{
				Type:   proto.TypeUserLeftCall,
				RoomID: roomID,
				UserID: s.UserID.String(),
			})
		}
		r.broadcastRoomUsers(roomID)
	}
}

func (r *Relay) handleChat(ctx context.Context, s *registry.Session, f proto.Frame, raw []byte) error {
	if !r.reg.InRoom(s, f.RoomID) {
		return fmt.Errorf("chat to room %d: %w", f.RoomID, errs.ErrNotMember)
	}
	el, err := shape.DecodeElement(f.Message)
	if err != nil {
		r.lg.Warn("dropping chat with malformed shape",
			zap.Int64("room", f.RoomID),
			zap.Error(err),
		)
		return nil
	}
	if err := r.log.Append(ctx, model.ChatMessage{
		ID:      el.ID,
		RoomID:  f.RoomID,
		UserID:  s.UserID,
		Message: f.Message,
	}); err != nil {
		r.lg.Error("persist shape",
			zap.Int64("room", f.RoomID),
			zap.Int64("shape", el.ID),
			zap.Error(err),
		)
	}
	// sender already has local state
	r.reg.Broadcast(f.RoomID, exclude(s), raw)
	return nil
}

func (r *Relay) handleDelete(ctx context.Context, s *registry.Session, f proto.Frame, raw []byte) error {
	if !r.reg.InRoom(s, f.RoomID) {
		return fmt.Errorf("delete in room %d: %w", f.RoomID, errs.ErrNotMember)
	}
	// A failed durable delete does not block the notification: peers drop
	// the shape from view and the log is reconciled on next load. Logged
	// so the inconsistency is visible.
	if err := r.log.Delete(ctx, f.RoomID, f.MessageID); err != nil {
		r.lg.Warn("durable delete failed",
			zap.Int64("room", f.RoomID),
			zap.Int64("shape", f.MessageID),
			zap.Error(err),
		)
	}
	r.reg.Broadcast(f.RoomID, exclude(s), raw)
	return nil
}

func (r *Relay) handleJoinCall(s *registry.Session, f proto.Frame) {
	r.reg.SetCallState(s, true, f.IsMuted)

	// snapshot for the joiner, so it can dial every existing participant
	snap, err := proto.Encode(proto.Frame{
		Type:         proto.TypeCallParticipants,
		RoomID:       f.RoomID,
		Participants: r.reg.CallParticipants(f.RoomID),
	})
	if err == nil {
		r.reg.Send(s, snap)
	}

	r.broadcastToCall(f.RoomID, s, proto.Frame{
		Type:   proto.TypeUserJoinedCall,
		RoomID: f.RoomID,
		User: &proto.CallUser{
			UserID:   s.UserID,
			Username: s.Username,
			IsMuted:  f.IsMuted,
		},
	})
	r.broadcastRoomUsers(f.RoomID)
}

func (r *Relay) handleLeaveCall(s *registry.Session, f proto.Frame) {
	r.reg.SetCallState(s, false, false)
	r.broadcastToCall(f.RoomID, s, proto.Frame{
		Type:   proto.TypeUserLeftCall,
		RoomID: f.RoomID,
		UserID: s.UserID.String(),
	})
	r.broadcastRoomUsers(f.RoomID)
}

func (r *Relay) handleToggleMute(s *registry.Session, f proto.Frame) {
	inCall, _ := r.reg.CallState(s)
	if !inCall {
		return
	}
	r.reg.SetCallState(s, true, f.IsMuted)
	r.broadcastToCall(f.RoomID, s, proto.Frame{
		Type:    proto.TypeUserMuteChanged,
		RoomID:  f.RoomID,
		UserID:  s.UserID.String(),
		IsMuted: f.IsMuted,
	})
	r.broadcastRoomUsers(f.RoomID)
}

// handleSignaling forwards WebRTC offers/answers/candidates to the target
// call peer with the sender's id attached. Payload contents are opaque.
func (r *Relay) handleSignaling(s *registry.Session, f proto.Frame) {
	target, err := uuid.FromString(f.TargetUserID)
	if err != nil {
		r.lg.Warn("signaling frame with bad target",
			zap.String("target", f.TargetUserID),
		)
		return
	}
	peer := r.reg.FindCallPeer(f.RoomID, target)
	if peer == nil {
		r.lg.Warn("signaling target not in call",
			zap.Int64("room", f.RoomID),
			zap.String("target", f.TargetUserID),
		)
		return
	}
	f.FromUserID = s.UserID.String()
	f.TargetUserID = ""
	payload, err := proto.Encode(f)
	if err != nil {
		return
	}
	r.reg.Send(peer, payload)
}

func (r *Relay) broadcastRoomUsers(roomID int64) {
	payload, err := proto.Encode(proto.Frame{
		Type:   proto.TypeRoomUsers,
		RoomID: roomID,
		Users:  r.reg.RoomUsers(roomID),
	})
	if err != nil {
		return
	}
	r.reg.Broadcast(roomID, nil, payload)
}

func (r *Relay) broadcastToCall(roomID int64, excludeSess *registry.Session, f proto.Frame) {
	payload, err := proto.Encode(f)
	if err != nil {
		return
	}
	r.reg.BroadcastToCall(roomID, excludeSess, payload)
}

// exclude builds the usual "everyone but the sender" broadcast predicate.
func exclude(s *registry.Session) func(*registry.Session) bool {
	return func(other *registry.Session) bool { return other.ID != s.ID }
}
