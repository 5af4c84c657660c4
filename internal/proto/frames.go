// Package proto defines the JSON frames exchanged over the room WebSocket.
// Frames are discriminated by the Type field; unused fields are omitted on
// the wire, so a single envelope covers every frame the relay handles.
package proto

import (
	"encoding/json"

	"github.com/gofrs/uuid/v5"

	"github.com/drawrhq/drawr/internal/model"
)

// Frame types, client to server unless noted.
const (
	TypeJoinRoom      = "join_room"
	TypeLeaveRoom     = "leave_room"
	TypeChat          = "chat"           // both directions
	TypeDeleteMessage = "delete_message" // both directions
	TypeRoomUsers     = "room_users"     // server to client

	TypeJoinCall   = "join_call"
	TypeLeaveCall  = "leave_call"
	TypeToggleMute = "toggle_mute"

	TypeUserJoinedCall   = "user_joined_call"   // server to client
	TypeUserLeftCall     = "user_left_call"     // server to client
	TypeUserMuteChanged  = "user_mute_changed"  // server to client
	TypeCallParticipants = "call_participants"  // server to client

	TypeWebRTCOffer        = "webrtc_offer"
	TypeWebRTCAnswer       = "webrtc_answer"
	TypeWebRTCICECandidate = "webrtc_ice_candidate"
)

// CallUser describes one voice-call participant on the wire.
type CallUser struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsMuted  bool      `json:"isMuted"`
}

// Frame is the envelope for every WebSocket message. Message carries the
// JSON-serialized shape element for chat frames; the WebRTC payloads are
// relayed opaque.
type Frame struct {
	Type string `json:"type"`

	RoomID    int64  `json:"roomId,omitempty"`
	Message   string `json:"message,omitempty"`
	MessageID int64  `json:"messageId,omitempty"`

	Users []model.RoomUser `json:"users,omitempty"`

	IsMuted bool      `json:"isMuted,omitempty"`
	UserID  string    `json:"userId,omitempty"`
	User    *CallUser `json:"user,omitempty"`

	Participants []CallUser `json:"participants,omitempty"`

	TargetUserID string `json:"targetUserId,omitempty"`
	FromUserID   string `json:"fromUserId,omitempty"`

	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Encode marshals the frame for transport.
func Encode(f Frame) ([]byte, error) { return json.Marshal(f) }

// Decode parses a raw WebSocket payload into a frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
