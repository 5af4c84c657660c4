// Package queue buffers shape persistence through a Redis list so the
// relay never blocks on Postgres. Writers push op-typed envelopes onto a
// single list and a background worker drains them into the durable log in
// arrival order.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/model"
	"github.com/drawrhq/drawr/internal/repository"
)

const (
	// One list for both ops: a delete followed by a re-add of the same id
	// must reach the store in that order.
	shapeQueue = "shape_queue"

	popTimeout = time.Second

	opCreate = "create"
	opDelete = "delete"
)

// envelope is one queued persistence command.
type envelope struct {
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	UserID    uuid.UUID `json:"userId"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// redisLister is the subset of redis.Cmdable the queue uses.
type redisLister interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Queue pushes shape writes to Redis and drains them to the chat repository.
type Queue struct {
	rdb   redisLister
	chats repository.ChatRepository
	lg    *zap.Logger
}

// New constructs a Queue.
func New(rdb *redis.Client, chats repository.ChatRepository, lg *zap.Logger) *Queue {
	return &Queue{rdb: rdb, chats: chats, lg: lg}
}

// NewWithLister constructs a Queue over a custom command set.
func NewWithLister(rdb redisLister, chats repository.ChatRepository, lg *zap.Logger) *Queue {
	return &Queue{rdb: rdb, chats: chats, lg: lg}
}

// Append enqueues a shape insert.
func (q *Queue) Append(ctx context.Context, msg model.ChatMessage) error {
	b, err := json.Marshal(envelope{
		Op:        opCreate,
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, shapeQueue, b).Err()
}

// Delete enqueues a shape delete.
func (q *Queue) Delete(ctx context.Context, roomID, shapeID int64) error {
	b, err := json.Marshal(envelope{Op: opDelete, ID: shapeID, RoomID: roomID, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, shapeQueue, b).Err()
}

// Run drains the queue until ctx is canceled. Malformed envelopes are
// logged and dropped; repository errors are logged and the envelope is
// requeued at the head so it retries once Postgres recovers.
func (q *Queue) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := q.rdb.BLPop(ctx, popTimeout, shapeQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			q.lg.Warn("queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// BLPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		q.process(ctx, res[1])
	}
}

func (q *Queue) process(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		q.lg.Warn("dropping malformed envelope", zap.Error(err))
		return
	}

	var err error
	switch env.Op {
	case opCreate:
		err = q.chats.Insert(ctx, model.ChatMessage{
			ID:        env.ID,
			RoomID:    env.RoomID,
			UserID:    env.UserID,
			Message:   env.Message,
			CreatedAt: env.CreatedAt,
		})
	case opDelete:
		err = q.chats.Delete(ctx, env.RoomID, env.ID)
	default:
		q.lg.Warn("envelope with unknown op", zap.String("op", env.Op))
		return
	}
	if err != nil {
		q.lg.Error("durable write failed, requeueing",
			zap.String("op", env.Op), zap.Int64("id", env.ID), zap.Error(err))
		if perr := q.rdb.LPush(ctx, shapeQueue, raw).Err(); perr != nil {
			q.lg.Error("requeue failed, envelope lost", zap.Int64("id", env.ID), zap.Error(perr))
		}
	}
}
