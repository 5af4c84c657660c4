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

// UserRepo provides access to user accounts.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a user repository backed by db.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. Returns errs.ErrAlreadyExists when the email
// or username is taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
		INSERT INTO users (id, email, username, pwd_hash, salt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.Username, u.PwdHash, u.Salt, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID fetches a user by id. Returns errs.ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `
		SELECT id, email, username, pwd_hash, salt, created_at
		FROM users WHERE id = $1`

	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Email, &u.Username, &u.PwdHash, &u.Salt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// GetByEmail fetches a user by email. Returns errs.ErrNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `
		SELECT id, email, username, pwd_hash, salt, created_at
		FROM users WHERE email = $1`

	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Email, &u.Username, &u.PwdHash, &u.Salt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}
