package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/model"
)

/************ fake redis lists ************/
type fakeLists struct {
	lists   map[string][]string
	pushErr error
}

func newFakeLists() *fakeLists {
	return &fakeLists{lists: map[string][]string{}}
}

func (f *fakeLists) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.pushErr != nil {
		cmd.SetErr(f.pushErr)
		return cmd
	}
	for _, v := range values {
		f.lists[key] = append(f.lists[key], string(v.([]byte)))
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeLists) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			s = string(v.([]byte))
		}
		f.lists[key] = append([]string{s}, f.lists[key]...)
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeLists) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	for _, k := range keys {
		if len(f.lists[k]) > 0 {
			v := f.lists[k][0]
			f.lists[k] = f.lists[k][1:]
			cmd.SetVal([]string{k, v})
			return cmd
		}
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

/************ recording chat repo ************/
type recordingChats struct {
	mu        sync.Mutex
	inserted  []model.ChatMessage
	deleted   [][2]int64
	insertErr error
}

func (r *recordingChats) Insert(_ context.Context, msg model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserted = append(r.inserted, msg)
	return nil
}

func (r *recordingChats) Delete(_ context.Context, roomID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, [2]int64{roomID, id})
	return nil
}

func (r *recordingChats) insertedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

func (r *recordingChats) ListByRoom(context.Context, int64) ([]model.ChatMessage, error) {
	return nil, nil
}

/************ keyed chat repo with insert-if-absent semantics ************/
type keyedChats struct {
	rows map[int64]string
}

func newKeyedChats() *keyedChats {
	return &keyedChats{rows: map[int64]string{}}
}

func (k *keyedChats) Insert(_ context.Context, msg model.ChatMessage) error {
	if _, ok := k.rows[msg.ID]; ok {
		return nil // conflicting id keeps the existing row
	}
	k.rows[msg.ID] = msg.Message
	return nil
}

func (k *keyedChats) Delete(_ context.Context, _, id int64) error {
	delete(k.rows, id)
	return nil
}

func (k *keyedChats) ListByRoom(context.Context, int64) ([]model.ChatMessage, error) {
	return nil, nil
}

// drain pops and applies everything currently queued, the way Run does.
func drain(t *testing.T, q *Queue, fl *fakeLists) {
	t.Helper()
	for len(fl.lists[shapeQueue]) > 0 {
		res, err := fl.BLPop(context.Background(), popTimeout, shapeQueue).Result()
		require.NoError(t, err)
		require.Len(t, res, 2)
		q.process(context.Background(), res[1])
	}
}

func TestQueue_Append_EnqueuesEnvelope(t *testing.T) {
	fl := newFakeLists()
	q := NewWithLister(fl, &recordingChats{}, zap.NewNop())

	msg := model.ChatMessage{
		ID:      421337001,
		RoomID:  3,
		UserID:  uuid.Must(uuid.NewV4()),
		Message: `{"id":421337001,"shape":{"type":"line"}}`,
	}
	require.NoError(t, q.Append(context.Background(), msg))
	require.Len(t, fl.lists[shapeQueue], 1)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(fl.lists[shapeQueue][0]), &env))
	require.Equal(t, opCreate, env.Op)
	require.Equal(t, int64(421337001), env.ID)
	require.Equal(t, int64(3), env.RoomID)
}

func TestQueue_Append_RedisDown(t *testing.T) {
	fl := newFakeLists()
	fl.pushErr = errors.New("redis down")
	q := NewWithLister(fl, &recordingChats{}, zap.NewNop())

	require.Error(t, q.Append(context.Background(), model.ChatMessage{ID: 1}))
}

func TestQueue_ProcessCreate_Inserts(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{}
	q := NewWithLister(fl, chats, zap.NewNop())

	msg := model.ChatMessage{ID: 100, RoomID: 2, UserID: uuid.Must(uuid.NewV4()), Message: `{}`}
	b, err := json.Marshal(envelope{Op: opCreate, ID: msg.ID, RoomID: msg.RoomID, UserID: msg.UserID, Message: msg.Message})
	require.NoError(t, err)

	q.process(context.Background(), string(b))
	require.Len(t, chats.inserted, 1)
	require.Equal(t, int64(100), chats.inserted[0].ID)
}

func TestQueue_ProcessDelete_Deletes(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{}
	q := NewWithLister(fl, chats, zap.NewNop())

	b, err := json.Marshal(envelope{Op: opDelete, ID: 100, RoomID: 2})
	require.NoError(t, err)

	q.process(context.Background(), string(b))
	require.Equal(t, [][2]int64{{2, 100}}, chats.deleted)
}

func TestQueue_ProcessMalformed_Dropped(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{}
	q := NewWithLister(fl, chats, zap.NewNop())

	q.process(context.Background(), `not json`)
	require.Empty(t, chats.inserted)
	require.Empty(t, fl.lists[shapeQueue])
}

func TestQueue_ProcessUnknownOp_Dropped(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{}
	q := NewWithLister(fl, chats, zap.NewNop())

	q.process(context.Background(), `{"op":"upsert","id":5}`)
	require.Empty(t, chats.inserted)
	require.Empty(t, chats.deleted)
	require.Empty(t, fl.lists[shapeQueue])
}

func TestQueue_InsertFailure_Requeued(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{insertErr: errors.New("pg down")}
	q := NewWithLister(fl, chats, zap.NewNop())

	b, err := json.Marshal(envelope{Op: opCreate, ID: 100, RoomID: 2})
	require.NoError(t, err)

	q.process(context.Background(), string(b))
	require.Len(t, fl.lists[shapeQueue], 1, "envelope must return to the queue head")
}

// A moved shape is persisted as delete(id) then add(id). With a backlog both
// envelopes sit queued together; the drain must apply them in arrival order
// or the insert no-ops against the old row and the delete then erases it.
func TestQueue_DeleteThenAppend_SameID_ShapeSurvives(t *testing.T) {
	fl := newFakeLists()
	chats := newKeyedChats()
	q := NewWithLister(fl, chats, zap.NewNop())

	require.NoError(t, chats.Insert(context.Background(), model.ChatMessage{ID: 42, RoomID: 1, Message: `old`}))

	require.NoError(t, q.Delete(context.Background(), 1, 42))
	require.NoError(t, q.Append(context.Background(), model.ChatMessage{ID: 42, RoomID: 1, Message: `new`}))

	drain(t, q, fl)

	got, ok := chats.rows[42]
	require.True(t, ok, "shape 42 must survive a delete+add resync")
	require.Equal(t, `new`, got)
}

func TestQueue_Run_DrainsUntilCancel(t *testing.T) {
	fl := newFakeLists()
	chats := &recordingChats{}
	q := NewWithLister(fl, chats, zap.NewNop())

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, q.Append(context.Background(), model.ChatMessage{ID: i, RoomID: 1, Message: `{}`}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return chats.insertedCount() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
