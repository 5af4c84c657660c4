// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	Username  string
	PwdHash   []byte // Argon2id(password, Salt)
	Salt      []byte // per-user auth salt
	CreatedAt time.Time
}

// Room is a named collaborative canvas session.
type Room struct {
	ID        int64     // PK, server-assigned
	Slug      string    // unique, human-chosen
	AdminID   uuid.UUID // creator
	CreatedAt time.Time
}

// ChatMessage is one persisted shape in a room's durable log.
// Message holds the JSON-serialized shape element; ID is the
// client-assigned shape id and doubles as the durable key.
type ChatMessage struct {
	ID        int64
	RoomID    int64
	UserID    uuid.UUID
	Message   string
	CreatedAt time.Time
}

// RoomUser is one entry of a room membership snapshot sent to clients.
type RoomUser struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	IsInCall bool      `json:"isInCall"`
	IsMuted  bool      `json:"isMuted"`
}
