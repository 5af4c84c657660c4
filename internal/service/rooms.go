package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/repository"
)

// RoomService defines room lifecycle and membership operations.
type RoomService interface {
	// Create makes a new room with the given slug, owned by adminID.
	Create(ctx context.Context, slug string, adminID uuid.UUID) (*model.Room, error)
	// BySlug finds a room by its slug.
	BySlug(ctx context.Context, slug string) (*model.Room, error)
	// Joined lists the rooms a user belongs to.
	Joined(ctx context.Context, userID uuid.UUID) ([]model.Room, error)
	// Join adds a user to a room.
	Join(ctx context.Context, roomID int64, userID uuid.UUID) error
	// Leave removes a user from a room. Admins cannot leave their own room.
	Leave(ctx context.Context, roomID int64, userID uuid.UUID) error
	// Delete removes a room. Only the admin may delete it.
	Delete(ctx context.Context, roomID int64, userID uuid.UUID) error
	// IsMember reports whether a user is joined to a room.
	IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error)
}

type RoomServiceImpl struct {
	rooms repository.RoomRepository
}

// NewRoomService constructs RoomService.
func NewRoomService(rooms repository.RoomRepository) *RoomServiceImpl {
	return &RoomServiceImpl{rooms: rooms}
}

// Create makes a new room and auto-joins its admin.
func (s *RoomServiceImpl) Create(ctx context.Context, slug string, adminID uuid.UUID) (*model.Room, error) {
	if slug == "" {
		return nil, errors.New("empty slug")
	}
	room := &model.Room{Slug: slug, AdminID: adminID, CreatedAt: time.Now()}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// BySlug finds a room by its slug.
func (s *RoomServiceImpl) BySlug(ctx context.Context, slug string) (*model.Room, error) {
	return s.rooms.BySlug(ctx, slug)
}

// Joined lists the rooms a user belongs to.
func (s *RoomServiceImpl) Joined(ctx context.Context, userID uuid.UUID) ([]model.Room, error) {
	return s.rooms.Joined(ctx, userID)
}

// Join adds a user to an existing room.
func (s *RoomServiceImpl) Join(ctx context.Context, roomID int64, userID uuid.UUID) error {
	if _, err := s.rooms.ByID(ctx, roomID); err != nil {
		return err
	}
	return s.rooms.AddMember(ctx, roomID, userID)
}

// Leave removes a user from a room. The admin owns the room and must
// delete it instead of leaving.
func (s *RoomServiceImpl) Leave(ctx context.Context, roomID int64, userID uuid.UUID) error {
	room, err := s.rooms.ByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID == userID {
		return errs.ErrForbidden
	}
	return s.rooms.RemoveMember(ctx, roomID, userID)
}

// Delete removes a room if the caller is its admin.
func (s *RoomServiceImpl) Delete(ctx context.Context, roomID int64, userID uuid.UUID) error {
	room, err := s.rooms.ByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID != userID {
		return errs.ErrForbidden
	}
	return s.rooms.Delete(ctx, roomID)
}

// IsMember reports whether a user is joined to a room.
func (s *RoomServiceImpl) IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return s.rooms.IsMember(ctx, roomID, userID)
}
