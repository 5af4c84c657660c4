package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/service"
)

/************ fake services ************/

type fakeAuth struct {
	user     *model.User
	token    string
	loginErr error
	regErr   error
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(_ context.Context, email, username, password string) (string, error) {
	if f.regErr != nil {
		return "", f.regErr
	}
	return f.user.ID.String(), nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, email, password, ip string) (string, model.User, error) {
	if f.loginErr != nil {
		return "", model.User{}, f.loginErr
	}
	return f.token, *f.user, nil
}

func (f *fakeAuth) Identify(_ context.Context, token string) (*model.User, error) {
	if token != f.token {
		return nil, errs.ErrUnauthorized
	}
	return f.user, nil
}

type fakeRoomSvc struct {
	room      *model.Room
	createErr error
	leaveErr  error
	deleteErr error
}

var _ service.RoomService = (*fakeRoomSvc)(nil)

func (f *fakeRoomSvc) Create(_ context.Context, slug string, adminID uuid.UUID) (*model.Room, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.room, nil
}

func (f *fakeRoomSvc) BySlug(_ context.Context, slug string) (*model.Room, error) {
	if f.room != nil && f.room.Slug == slug {
		return f.room, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeRoomSvc) Joined(context.Context, uuid.UUID) ([]model.Room, error) {
	if f.room == nil {
		return nil, nil
	}
	return []model.Room{*f.room}, nil
}

func (f *fakeRoomSvc) Join(context.Context, int64, uuid.UUID) error  { return nil }
func (f *fakeRoomSvc) Leave(context.Context, int64, uuid.UUID) error { return f.leaveErr }
func (f *fakeRoomSvc) Delete(context.Context, int64, uuid.UUID) error {
	return f.deleteErr
}
func (f *fakeRoomSvc) IsMember(context.Context, int64, uuid.UUID) (bool, error) {
	return true, nil
}

type fakeChatSvc struct {
	msgs   []model.ChatMessage
	addErr error
	added  []string
}

var _ service.ChatService = (*fakeChatSvc)(nil)

func (f *fakeChatSvc) History(context.Context, int64, uuid.UUID) ([]model.ChatMessage, error) {
	return f.msgs, nil
}

func (f *fakeChatSvc) Add(_ context.Context, _ int64, _ uuid.UUID, message string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, message)
	return nil
}

/************ fixtures ************/

const testToken = "test-token"

func fixture(t *testing.T) (*Server, *fakeAuth, *fakeRoomSvc, *fakeChatSvc) {
	t.Helper()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.c", Username: "alice"}
	auth := &fakeAuth{user: user, token: testToken}
	rooms := &fakeRoomSvc{room: &model.Room{ID: 3, Slug: "retro", AdminID: user.ID}}
	chats := &fakeChatSvc{}
	return New(auth, rooms, chats, nil, zap.NewNop()), auth, rooms, chats
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

/************ tests ************/

func TestSignup_OK(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodPost, "/signup", "",
		map[string]string{"email": "a@b.c", "username": "alice", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["userId"])
}

func TestSignup_MissingFields(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodPost, "/signup", "", map[string]string{"email": "a@b.c"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_Duplicate(t *testing.T) {
	s, auth, _, _ := fixture(t)
	auth.regErr = errs.ErrAlreadyExists

	rec := do(t, s, http.MethodPost, "/signup", "",
		map[string]string{"email": "a@b.c", "username": "alice", "password": "pw"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignin_OK(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodPost, "/signin", "",
		map[string]string{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, testToken, resp.Token)
	require.Equal(t, "alice", resp.User.Username)
}

func TestSignin_RateLimited(t *testing.T) {
	s, auth, _, _ := fixture(t)
	auth.loginErr = errs.ErrRateLimited

	rec := do(t, s, http.MethodPost, "/signin", "",
		map[string]string{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPrivateRoutes_RequireToken(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodGet, "/rooms", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/rooms", "wrong-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRoom_OK(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodPost, "/room", testToken, map[string]string{"slug": "retro"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var room roomView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	require.Equal(t, "retro", room.Slug)
	require.Equal(t, int64(3), room.ID)
}

func TestCreateRoom_SlugTaken(t *testing.T) {
	s, _, rooms, _ := fixture(t)
	rooms.createErr = errs.ErrAlreadyExists

	rec := do(t, s, http.MethodPost, "/room", testToken, map[string]string{"slug": "retro"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoomBySlug_NotFound(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodGet, "/room/nope", testToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRoom_Forbidden(t *testing.T) {
	s, _, rooms, _ := fixture(t)
	rooms.deleteErr = errs.ErrForbidden

	rec := do(t, s, http.MethodDelete, "/room", testToken, map[string]int64{"roomId": 3})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeaveRoom_NotMember(t *testing.T) {
	s, _, rooms, _ := fixture(t)
	rooms.leaveErr = errs.ErrNotMember

	rec := do(t, s, http.MethodDelete, "/rooms", testToken, map[string]int64{"roomId": 3})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatHistory_OK(t *testing.T) {
	s, _, _, chats := fixture(t)
	chats.msgs = []model.ChatMessage{
		{ID: 100, RoomID: 3, UserID: uuid.Must(uuid.NewV4()), Message: `{"id":100}`},
	}

	rec := do(t, s, http.MethodGet, "/chats/3", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			ID      int64  `json:"id"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, int64(100), resp.Messages[0].ID)
}

func TestChatHistory_BadRoomID(t *testing.T) {
	s, _, _, _ := fixture(t)

	rec := do(t, s, http.MethodGet, "/chats/abc", testToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChat_OK(t *testing.T) {
	s, _, _, chats := fixture(t)

	element := `{"id":421337001,"shape":{"type":"line","startX":0,"startY":0,"endX":5,"endY":5,"strokeColor":"#000000"}}`
	rec := do(t, s, http.MethodPost, "/chats/3", testToken, map[string]string{"message": element})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, chats.added, 1)
}

func TestPostChat_InvalidShape(t *testing.T) {
	s, _, _, chats := fixture(t)

	rec := do(t, s, http.MethodPost, "/chats/3", testToken, map[string]string{"message": `{"nope":1}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, chats.added)
}
