// Package client talks to a drawr server: REST for accounts, rooms and
// shape history, WebSocket for the live room relay.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/shape"
)

// REST is a thin typed wrapper over the HTTP API.
type REST struct {
	base  string
	token string
	http  *http.Client
}

// NewREST constructs a REST client for the given base URL. Token may be
// empty for the public endpoints.
func NewREST(base, token string) *REST {
	return &REST{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Room mirrors the server's room view.
type Room struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	AdminID string `json:"adminId"`
}

// User mirrors the signin response user object.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (c *REST) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = errs.ErrNotFound
	case http.StatusUnauthorized:
		sentinel = errs.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = errs.ErrForbidden
	case http.StatusConflict:
		sentinel = errs.ErrAlreadyExists
	case http.StatusTooManyRequests:
		sentinel = errs.ErrRateLimited
	default:
		return fmt.Errorf("server: %d %s", resp.StatusCode, payload.Message)
	}
	if payload.Message != "" {
		return fmt.Errorf("%s: %w", payload.Message, sentinel)
	}
	return sentinel
}

// Signup registers a new account and returns the user id.
func (c *REST) Signup(ctx context.Context, email, username, password string) (string, error) {
	var resp struct {
		UserID string `json:"userId"`
	}
	err := c.do(ctx, http.MethodPost, "/signup",
		map[string]string{"email": email, "username": username, "password": password}, &resp)
	return resp.UserID, err
}

// Signin authenticates and returns a bearer token plus the user.
func (c *REST) Signin(ctx context.Context, email, password string) (string, User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/signin",
		map[string]string{"email": email, "password": password}, &resp)
	return resp.Token, resp.User, err
}

// CreateRoom makes a new room owned by the caller.
func (c *REST) CreateRoom(ctx context.Context, slug string) (Room, error) {
	var room Room
	err := c.do(ctx, http.MethodPost, "/room", map[string]string{"slug": slug}, &room)
	return room, err
}

// RoomBySlug resolves a slug to a room.
func (c *REST) RoomBySlug(ctx context.Context, slug string) (Room, error) {
	var room Room
	err := c.do(ctx, http.MethodGet, "/room/"+slug, nil, &room)
	return room, err
}

// Rooms lists the rooms the caller has joined.
func (c *REST) Rooms(ctx context.Context) ([]Room, error) {
	var resp struct {
		Rooms []Room `json:"rooms"`
	}
	err := c.do(ctx, http.MethodGet, "/rooms", nil, &resp)
	return resp.Rooms, err
}

// JoinRoom adds the caller to a room.
func (c *REST) JoinRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, "/rooms", map[string]int64{"roomId": roomID}, nil)
}

// LeaveRoom removes the caller from a room.
func (c *REST) LeaveRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, "/rooms", map[string]int64{"roomId": roomID}, nil)
}

// DeleteRoom deletes a room the caller administers.
func (c *REST) DeleteRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, "/room", map[string]int64{"roomId": roomID}, nil)
}

// History fetches a room's persisted shapes in insertion order.
func (c *REST) History(ctx context.Context, roomID int64) ([]shape.Element, error) {
	var resp struct {
		Messages []struct {
			ID      int64  `json:"id"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats/"+strconv.FormatInt(roomID, 10), nil, &resp); err != nil {
		return nil, err
	}
	els := make([]shape.Element, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		el, err := shape.DecodeElement(m.Message)
		if err != nil {
			// skip unreadable history entries instead of failing the load
			continue
		}
		if el.ID == 0 {
			el.ID = m.ID
		}
		els = append(els, el)
	}
	return els, nil
}

// PostShape persists one serialized element over HTTP, used by the
// guest-to-account import flow.
func (c *REST) PostShape(ctx context.Context, roomID int64, message string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+strconv.FormatInt(roomID, 10),
		map[string]string{"message": message}, nil)
}
