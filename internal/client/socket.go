package client

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/proto"
)

// Socket is the live connection to a room relay. Sends on a closed socket
// are silent no-ops; there is no reconnect, a closed socket is terminal.
type Socket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	lg     *zap.Logger
}

// Dial connects to the relay endpoint with the bearer token attached as a
// query parameter.
func Dial(ctx context.Context, base, token string, lg *zap.Logger) (*Socket, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.RawQuery = "token=" + url.QueryEscape(token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn, lg: lg}, nil
}

// Close shuts the connection down.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// send marshals and writes a frame. A closed socket swallows the write.
func (s *Socket) send(f proto.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		s.lg.Warn("encode frame", zap.Error(err))
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.lg.Warn("socket write failed, closing", zap.Error(err))
		s.closed = true
		_ = s.conn.Close()
	}
}

// JoinRoom announces room membership to the relay.
func (s *Socket) JoinRoom(roomID int64) {
	s.send(proto.Frame{Type: proto.TypeJoinRoom, RoomID: roomID})
}

// LeaveRoom withdraws from a room.
func (s *Socket) LeaveRoom(roomID int64) {
	s.send(proto.Frame{Type: proto.TypeLeaveRoom, RoomID: roomID})
}

// SendShape broadcasts a serialized element add.
func (s *Socket) SendShape(roomID int64, message string) {
	s.send(proto.Frame{Type: proto.TypeChat, RoomID: roomID, Message: message})
}

// SendDelete broadcasts a shape delete.
func (s *Socket) SendDelete(roomID, shapeID int64) {
	s.send(proto.Frame{Type: proto.TypeDeleteMessage, RoomID: roomID, MessageID: shapeID})
}

// Listen reads frames until the connection dies or ctx is canceled, passing
// each raw payload to handle.
func (s *Socket) Listen(ctx context.Context, handle func(data []byte)) {
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			if ctx.Err() == nil {
				s.lg.Warn("socket closed", zap.Error(err))
			}
			return
		}
		handle(data)
	}
}
