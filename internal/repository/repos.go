// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/drawrhq/drawr/internal/model"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// RoomRepository provides room and membership storage.
type RoomRepository interface {
	// Create inserts a room and joins the admin, assigning Room.ID.
	Create(ctx context.Context, room *model.Room) error
	// BySlug loads a room by its unique slug.
	BySlug(ctx context.Context, slug string) (*model.Room, error)
	// ByID loads a room by id.
	ByID(ctx context.Context, id int64) (*model.Room, error)
	// Delete removes a room and, via cascade, its memberships and shapes.
	Delete(ctx context.Context, id int64) error
	// Joined lists the rooms a user is a member of.
	Joined(ctx context.Context, userID uuid.UUID) ([]model.Room, error)
	// IsMember reports whether a user is joined to a room.
	IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error)
	// AddMember joins a user to a room.
	AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error
	// RemoveMember removes a user from a room.
	RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error
}

// ChatRepository is the durable shape log, keyed by client-assigned ids.
type ChatRepository interface {
	// Insert persists one shape. Re-inserting an existing id is a no-op,
	// which makes guest imports safe to replay.
	Insert(ctx context.Context, msg model.ChatMessage) error
	// Delete removes a shape by id and room. Missing ids are a no-op.
	Delete(ctx context.Context, roomID, id int64) error
	// ListByRoom returns a room's shapes in insertion order (ascending id).
	ListByRoom(ctx context.Context, roomID int64) ([]model.ChatMessage, error)
}
