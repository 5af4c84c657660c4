package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func TestUserRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	u := &model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     "a@b.c",
		Username:  "alice",
		PwdHash:   []byte("hash"),
		Salt:      []byte("salt"),
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.Username, u.PwdHash, u.Salt, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_Duplicate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	u := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.c"}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, u.Username, u.PwdHash, u.Salt, u.CreatedAt).
		WillReturnError(uniqueViolation())

	err := r.Create(context.Background(), u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT id, email, username, pwd_hash, salt, created_at`).
		WithArgs("nobody@b.c").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByEmail(context.Background(), "nobody@b.c")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByID_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, email, username, pwd_hash, salt, created_at`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "pwd_hash", "salt", "created_at"}).
			AddRow(id, "a@b.c", "alice", []byte("hash"), []byte("salt"), now))

	u, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, id, u.ID)
}

func TestRoomRepo_Create_JoinsAdmin(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRoomRepo(db)

	room := &model.Room{Slug: "retro", AdminID: uuid.Must(uuid.NewV4()), CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).
		WithArgs(room.Slug, room.AdminID, room.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO user_rooms`).
		WithArgs(room.AdminID, int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Create(context.Background(), room))
	require.Equal(t, int64(7), room.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepo_Create_SlugTaken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRoomRepo(db)

	room := &model.Room{Slug: "retro", AdminID: uuid.Must(uuid.NewV4()), CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO rooms`).
		WithArgs(room.Slug, room.AdminID, room.CreatedAt).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	err := r.Create(context.Background(), room)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestRoomRepo_Delete_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRoomRepo(db)

	mock.ExpectExec(`DELETE FROM rooms`).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := r.Delete(context.Background(), 99)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRoomRepo_Joined(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRoomRepo(db)

	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT r\.id, r\.slug, r\.admin_id, r\.created_at`).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "slug", "admin_id", "created_at"}).
			AddRow(int64(2), "retro", userID, now).
			AddRow(int64(1), "standup", userID, now))

	rooms, err := r.Joined(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "retro", rooms[0].Slug)
}

func TestRoomRepo_RemoveMember_NotJoined(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewRoomRepo(db)

	userID := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM user_rooms`).
		WithArgs(userID, int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := r.RemoveMember(context.Background(), 3, userID)
	require.ErrorIs(t, err, errs.ErrNotMember)
}

func TestChatRepo_Insert_ConflictIsNoop(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChatRepo(db)

	msg := model.ChatMessage{
		ID:        421337001,
		RoomID:    3,
		UserID:    uuid.Must(uuid.NewV4()),
		Message:   `{"id":421337001,"shape":{"type":"line"}}`,
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO chats`).
		WithArgs(msg.ID, msg.RoomID, msg.UserID, msg.Message, msg.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, r.Insert(context.Background(), msg))
}

func TestChatRepo_Delete_MissingIsNoop(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChatRepo(db)

	mock.ExpectExec(`DELETE FROM chats`).
		WithArgs(int64(421337001), int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, r.Delete(context.Background(), 3, 421337001))
}

func TestChatRepo_ListByRoom(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChatRepo(db)

	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, room_id, user_id, message, created_at`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "room_id", "user_id", "message", "created_at"}).
			AddRow(int64(100), int64(3), userID, `{"a":1}`, now).
			AddRow(int64(200), int64(3), userID, `{"b":2}`, now))

	msgs, err := r.ListByRoom(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, int64(100), msgs[0].ID)
	require.Equal(t, int64(200), msgs[1].ID)
}

func TestChatRepo_Insert_DBError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChatRepo(db)

	msg := model.ChatMessage{ID: 1, RoomID: 1, UserID: uuid.Must(uuid.NewV4()), CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO chats`).
		WithArgs(msg.ID, msg.RoomID, msg.UserID, msg.Message, msg.CreatedAt).
		WillReturnError(errors.New("boom"))

	require.Error(t, r.Insert(context.Background(), msg))
}
