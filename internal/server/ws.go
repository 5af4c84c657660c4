package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/registry"
	"github.com/drawrhq/drawr/internal/relay"
	"github.com/drawrhq/drawr/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 1 << 20
)

// WSHandler upgrades authenticated clients and pumps frames through the relay.
type WSHandler struct {
	auth     service.AuthService
	reg      *registry.Registry
	relay    *relay.Relay
	upgrader websocket.Upgrader
	lg       *zap.Logger
}

// NewWSHandler constructs the WebSocket endpoint.
func NewWSHandler(auth service.AuthService, reg *registry.Registry, rl *relay.Relay, lg *zap.Logger) *WSHandler {
	return &WSHandler{
		auth:  auth,
		reg:   reg,
		relay: rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from a different origin than the API host.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		lg: lg,
	}
}

// Handle upgrades the connection, authenticates via the token query
// parameter and runs the read loop until the client goes away.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	user, err := h.auth.Identify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		// Tell the client why before closing so it does not retry forever.
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("Unauthorized"))
		time.Sleep(100 * time.Millisecond)
		_ = conn.Close()
		return
	}

	sess := h.reg.Add(user.ID, user.Username)
	h.lg.Info("ws connected", zap.String("user", user.ID.String()))

	go h.writePump(conn, sess)
	h.readLoop(r, conn, sess)
}

// writePump owns all writes to the connection. It drains the session's
// outbound channel and exits when the registry closes it.
func (h *WSHandler) writePump(conn *websocket.Conn, sess *registry.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sess.Out():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(r *http.Request, conn *websocket.Conn, sess *registry.Session) {
	defer h.relay.Disconnect(sess)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.lg.Warn("ws read failed", zap.Error(err))
			}
			return
		}
		if err := h.relay.HandleFrame(r.Context(), sess, data); err != nil {
			h.lg.Warn("closing session", zap.String("user", sess.UserID.String()), zap.Error(err))
			// Tell the client why, as the token path does. The write pump
			// owns the connection, so the notice goes through the session.
			h.reg.Send(sess, []byte(err.Error()))
			time.Sleep(100 * time.Millisecond)
			return
		}
	}
}
