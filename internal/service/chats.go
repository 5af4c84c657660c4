package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/repository"
	"github.com/drawrhq/drawr/internal/shape"
)

// ChatService exposes a room's durable shape log to HTTP clients.
type ChatService interface {
	// History returns all shapes of a room in insertion order.
	History(ctx context.Context, roomID int64, userID uuid.UUID) ([]model.ChatMessage, error)
	// Add persists one shape posted over HTTP, typically a guest import.
	// Re-posting an already stored shape id is accepted silently.
	Add(ctx context.Context, roomID int64, userID uuid.UUID, message string) error
}

type ChatServiceImpl struct {
	chats repository.ChatRepository
	rooms repository.RoomRepository
}

// NewChatService constructs ChatService.
func NewChatService(chats repository.ChatRepository, rooms repository.RoomRepository) *ChatServiceImpl {
	return &ChatServiceImpl{chats: chats, rooms: rooms}
}

// History returns the shape log for members of the room.
func (s *ChatServiceImpl) History(ctx context.Context, roomID int64, userID uuid.UUID) ([]model.ChatMessage, error) {
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotMember
	}
	return s.chats.ListByRoom(ctx, roomID)
}

// Add validates the payload as a shape element and persists it under the
// element's own id.
func (s *ChatServiceImpl) Add(ctx context.Context, roomID int64, userID uuid.UUID, message string) error {
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNotMember
	}

	el, err := shape.DecodeElement(message)
	if err != nil {
		return err
	}

	return s.chats.Insert(ctx, model.ChatMessage{
		ID:        el.ID,
		RoomID:    roomID,
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	})
}
