package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
)

// RoomRepo provides room and membership storage.
type RoomRepo struct {
	db *DB
}

// NewRoomRepo creates a room repository backed by db.
func NewRoomRepo(db *DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// Create inserts a room and joins its admin in one transaction.
// Returns errs.ErrAlreadyExists when the slug is taken.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insRoom = `
		INSERT INTO rooms (slug, admin_id, created_at)
		VALUES ($1, $2, $3) RETURNING id`

	err = tx.QueryRow(ctx, insRoom, room.Slug, room.AdminID, room.CreatedAt).Scan(&room.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("insert room: %w", err)
	}

	const insMember = `INSERT INTO user_rooms (user_id, room_id) VALUES ($1, $2)`
	if _, err = tx.Exec(ctx, insMember, room.AdminID, room.ID); err != nil {
		return fmt.Errorf("join admin: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// BySlug loads a room by its slug. Returns errs.ErrNotFound when absent.
func (r *RoomRepo) BySlug(ctx context.Context, slug string) (*model.Room, error) {
	const q = `SELECT id, slug, admin_id, created_at FROM rooms WHERE slug = $1`

	var room model.Room
	err := r.db.Pool.QueryRow(ctx, q, slug).
		Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("get room by slug: %w", err)
	}
	return &room, nil
}

// ByID loads a room by id. Returns errs.ErrNotFound when absent.
func (r *RoomRepo) ByID(ctx context.Context, id int64) (*model.Room, error) {
	const q = `SELECT id, slug, admin_id, created_at FROM rooms WHERE id = $1`

	var room model.Room
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("get room by id: %w", err)
	}
	return &room, nil
}

// Delete removes a room. Memberships and shapes go with it via ON DELETE CASCADE.
func (r *RoomRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM rooms WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Joined lists the rooms a user is a member of, newest first.
func (r *RoomRepo) Joined(ctx context.Context, userID uuid.UUID) ([]model.Room, error) {
	const q = `
		SELECT r.id, r.slug, r.admin_id, r.created_at
		FROM rooms r
		JOIN user_rooms ur ON ur.room_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.id DESC`

	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list joined rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Slug, &room.AdminID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return out, nil
}

// IsMember reports whether a user is joined to a room.
func (r *RoomRepo) IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_rooms WHERE user_id = $1 AND room_id = $2)`

	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, userID, roomID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// AddMember joins a user to a room. Joining twice is a no-op.
func (r *RoomRepo) AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	const q = `
		INSERT INTO user_rooms (user_id, room_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, room_id) DO NOTHING`

	if _, err := r.db.Pool.Exec(ctx, q, userID, roomID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room. Returns errs.ErrNotMember
// when the user was not joined.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	const q = `DELETE FROM user_rooms WHERE user_id = $1 AND room_id = $2`

	tag, err := r.db.Pool.Exec(ctx, q, userID, roomID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotMember
	}
	return nil
}
