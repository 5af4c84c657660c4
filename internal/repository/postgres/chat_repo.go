package postgres

import (
	"context"
	"fmt"

	"github.com/drawrhq/drawr/internal/model"
)

// ChatRepo is the durable shape log for rooms.
type ChatRepo struct {
	db *DB
}

// NewChatRepo creates a chat repository backed by db.
func NewChatRepo(db *DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Insert persists one shape message. The id is client-assigned, so a
// conflicting insert means the shape is already stored and is skipped.
func (r *ChatRepo) Insert(ctx context.Context, msg model.ChatMessage) error {
	const q = `
		INSERT INTO chats (id, room_id, user_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Pool.Exec(ctx, q, msg.ID, msg.RoomID, msg.UserID, msg.Message, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// Delete removes a shape by id within a room. Missing ids are a no-op so
// concurrent erasers of the same shape both succeed.
func (r *ChatRepo) Delete(ctx context.Context, roomID, id int64) error {
	const q = `DELETE FROM chats WHERE id = $1 AND room_id = $2`

	if _, err := r.db.Pool.Exec(ctx, q, id, roomID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// ListByRoom returns a room's shapes in insertion order.
func (r *ChatRepo) ListByRoom(ctx context.Context, roomID int64) ([]model.ChatMessage, error) {
	const q = `
		SELECT id, room_id, user_id, message, created_at
		FROM chats WHERE room_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return out, nil
}
