// Package server exposes the drawr HTTP API and the room WebSocket endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/service"
	"github.com/drawrhq/drawr/internal/shape"
)

type ctxKey int

const userKey ctxKey = iota

// Server wires services into HTTP handlers.
type Server struct {
	auth  service.AuthService
	rooms service.RoomService
	chats service.ChatService
	ws    *WSHandler
	lg    *zap.Logger
}

// New constructs the HTTP server.
func New(auth service.AuthService, rooms service.RoomService, chats service.ChatService, ws *WSHandler, lg *zap.Logger) *Server {
	return &Server{auth: auth, rooms: rooms, chats: chats, ws: ws, lg: lg}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/signin", s.handleSignin).Methods(http.MethodPost)

	priv := r.NewRoute().Subrouter()
	priv.Use(s.authMiddleware)
	priv.HandleFunc("/room", s.handleCreateRoom).Methods(http.MethodPost)
	priv.HandleFunc("/room", s.handleDeleteRoom).Methods(http.MethodDelete)
	priv.HandleFunc("/room/{slug}", s.handleRoomBySlug).Methods(http.MethodGet)
	priv.HandleFunc("/rooms", s.handleJoinedRooms).Methods(http.MethodGet)
	priv.HandleFunc("/rooms", s.handleJoinRoom).Methods(http.MethodPost)
	priv.HandleFunc("/rooms", s.handleLeaveRoom).Methods(http.MethodDelete)
	priv.HandleFunc("/chats/{roomId}", s.handleChatHistory).Methods(http.MethodGet)
	priv.HandleFunc("/chats/{roomId}", s.handlePostChat).Methods(http.MethodPost)

	if s.ws != nil {
		r.HandleFunc("/ws", s.ws.Handle)
	}
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeMessage(w, http.StatusConflict, "already exists")
	case errors.Is(err, errs.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, errs.ErrNotMember):
		writeMessage(w, http.StatusForbidden, "not a room member")
	case errors.Is(err, errs.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, "too many attempts, try later")
	default:
		s.lg.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// authMiddleware resolves the bearer token into a user.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		u, err := s.auth.Identify(r.Context(), token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func userFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- Accounts ---

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email, username and password are required")
		return
	}
	id, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": id})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	token, u, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, remoteIP(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]string{
			"id":       u.ID.String(),
			"email":    u.Email,
			"username": u.Username,
		},
	})
}

// --- Rooms ---

type roomView struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	AdminID string `json:"adminId"`
}

func viewRoom(r *model.Room) roomView {
	return roomView{ID: r.ID, Slug: r.Slug, AdminID: r.AdminID.String()}
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" {
		writeMessage(w, http.StatusBadRequest, "slug is required")
		return
	}
	room, err := s.rooms.Create(r.Context(), req.Slug, userFrom(r).ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewRoom(room))
}

func (s *Server) handleRoomBySlug(w http.ResponseWriter, r *http.Request) {
	room, err := s.rooms.BySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewRoom(room))
}

func (s *Server) handleJoinedRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.Joined(r.Context(), userFrom(r).ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]roomView, 0, len(rooms))
	for i := range rooms {
		views = append(views, viewRoom(&rooms[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": views})
}

func decodeRoomID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req struct {
		RoomID int64 `json:"roomId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == 0 {
		writeMessage(w, http.StatusBadRequest, "roomId is required")
		return 0, false
	}
	return req.RoomID, true
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := decodeRoomID(w, r)
	if !ok {
		return
	}
	if err := s.rooms.Join(r.Context(), roomID, userFrom(r).ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "joined")
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := decodeRoomID(w, r)
	if !ok {
		return
	}
	if err := s.rooms.Leave(r.Context(), roomID, userFrom(r).ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "left")
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := decodeRoomID(w, r)
	if !ok {
		return
	}
	if err := s.rooms.Delete(r.Context(), roomID, userFrom(r).ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "deleted")
}

// --- Chats ---

func roomIDVar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["roomId"], 10, 64)
	if err != nil || id == 0 {
		writeMessage(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDVar(w, r)
	if !ok {
		return
	}
	msgs, err := s.chats.History(r.Context(), roomID, userFrom(r).ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	type msgView struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	views := make([]msgView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, msgView{ID: m.ID, Message: m.Message, UserID: m.UserID.String()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeMessage(w, http.StatusBadRequest, "message is required")
		return
	}
	if _, err := shape.DecodeElement(req.Message); err != nil {
		writeMessage(w, http.StatusBadRequest, "message is not a valid shape")
		return
	}
	if err := s.chats.Add(r.Context(), roomID, userFrom(r).ID, req.Message); err != nil {
		s.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "stored")
}
