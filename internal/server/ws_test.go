package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/errs"
	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/registry"
	"github.com/drawrhq/drawr/internal/relay"
)

type memLog struct{}

func (memLog) Append(context.Context, model.ChatMessage) error { return nil }
func (memLog) Delete(context.Context, int64, int64) error      { return nil }

// multiAuth resolves a distinct user per token.
type multiAuth struct {
	users map[string]*model.User
}

func (m *multiAuth) Register(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (m *multiAuth) LoginWithIP(context.Context, string, string, string) (string, model.User, error) {
	return "", model.User{}, errs.ErrUnauthorized
}

func (m *multiAuth) Identify(_ context.Context, token string) (*model.User, error) {
	u, ok := m.users[token]
	if !ok {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

func wsFixture(t *testing.T) (*httptest.Server, *multiAuth) {
	t.Helper()
	lg := zap.NewNop()
	auth := &multiAuth{users: map[string]*model.User{
		"tok-alice": {ID: uuid.Must(uuid.NewV4()), Username: "alice"},
		"tok-bob":   {ID: uuid.Must(uuid.NewV4()), Username: "bob"},
	}}
	reg := registry.New(lg)
	rl := relay.New(reg, memLog{}, lg)
	ws := NewWSHandler(auth, reg, rl, lg)
	srv := New(auth, &fakeRoomSvc{}, &fakeChatSvc{}, ws, lg)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, auth
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f map[string]any
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, f map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

func TestWS_BadToken_UnauthorizedThenClose(t *testing.T) {
	ts, _ := wsFixture(t)

	conn := dialWS(t, ts, "nope")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "Unauthorized", string(data))

	// The server closes shortly after the notice.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestWS_JoinAndChatRelay(t *testing.T) {
	ts, _ := wsFixture(t)

	alice := dialWS(t, ts, "tok-alice")
	bob := dialWS(t, ts, "tok-bob")

	sendFrame(t, alice, map[string]any{"type": "join_room", "roomId": 7})
	// join_room answers with a room_users snapshot
	f := readFrame(t, alice)
	require.Equal(t, "room_users", f["type"])

	sendFrame(t, bob, map[string]any{"type": "join_room", "roomId": 7})
	_ = readFrame(t, bob) // bob's own snapshot
	f = readFrame(t, alice)
	require.Equal(t, "room_users", f["type"]) // refreshed for alice too

	element := `{"id":421337001,"shape":{"type":"line","startX":0,"startY":0,"endX":5,"endY":5,"strokeColor":"#000000"}}`
	sendFrame(t, alice, map[string]any{"type": "chat", "roomId": 7, "message": element})

	f = readFrame(t, bob)
	require.Equal(t, "chat", f["type"])
	require.Equal(t, element, f["message"])
}

func TestWS_ChatWithoutJoin_ClosesConnection(t *testing.T) {
	ts, _ := wsFixture(t)

	alice := dialWS(t, ts, "tok-alice")
	sendFrame(t, alice, map[string]any{"type": "chat", "roomId": 7, "message": `{"id":1,"shape":{"type":"line"}}`})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err, "a notice must arrive before the close")
	require.Contains(t, string(data), "not a room member")
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			return // connection dropped after the notice
		}
	}
}

func TestWS_CallSignalingRelay(t *testing.T) {
	ts, auth := wsFixture(t)

	alice := dialWS(t, ts, "tok-alice")
	bob := dialWS(t, ts, "tok-bob")

	sendFrame(t, alice, map[string]any{"type": "join_room", "roomId": 7})
	_ = readFrame(t, alice)
	sendFrame(t, bob, map[string]any{"type": "join_room", "roomId": 7})
	_ = readFrame(t, bob)
	_ = readFrame(t, alice)

	sendFrame(t, alice, map[string]any{"type": "join_call", "roomId": 7})
	f := readFrame(t, alice)
	require.Equal(t, "call_participants", f["type"])
	_ = readFrame(t, bob)   // room_users refresh
	_ = readFrame(t, alice) // room_users refresh

	sendFrame(t, bob, map[string]any{"type": "join_call", "roomId": 7})
	f = readFrame(t, bob)
	require.Equal(t, "call_participants", f["type"])

	// alice hears that bob joined the call
	for {
		f = readFrame(t, alice)
		if f["type"] == "user_joined_call" {
			break
		}
	}

	sendFrame(t, alice, map[string]any{
		"type":         "webrtc_offer",
		"roomId":       7,
		"targetUserId": auth.users["tok-bob"].ID.String(),
		"offer":        map[string]any{"sdp": "x"},
	})
	for {
		f = readFrame(t, bob)
		if f["type"] == "webrtc_offer" {
			break
		}
	}
	require.Equal(t, auth.users["tok-alice"].ID.String(), f["fromUserId"])
}
