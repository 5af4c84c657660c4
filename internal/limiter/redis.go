package limiter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmder is the subset of redis.Cmdable the limiter uses, kept small
// so tests can stub it without a live server.
type redisCmder interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a Redis-backed limiter with a fixed failure window and lockout.
// Failure counts live under a window-expiring counter key; an active block
// is a separate key whose TTL is the remaining lockout.
type Redis struct {
	rdb      redisCmder
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb *redis.Client, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window, maxFails: maxFails, blockFor: blockFor}
}

// NewRedisWithCmder constructs a Redis-backed limiter over a custom command set.
func NewRedisWithCmder(rdb redisCmder, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	return &Redis{rdb: rdb, window: window, maxFails: maxFails, blockFor: blockFor}
}

func (l *Redis) failKey(email string, ipHash []byte) string {
	return fmt.Sprintf("login:fail:%s:%s", email, hex.EncodeToString(ipHash))
}

func (l *Redis) blockKey(email string, ipHash []byte) string {
	return fmt.Sprintf("login:block:%s:%s", email, hex.EncodeToString(ipHash))
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, l.blockKey(email, ipHash)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success resets counters for (email, ip).
func (l *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	return l.rdb.Del(ctx, l.failKey(email, ipHash), l.blockKey(email, ipHash)).Err()
}

// Failure records a failed attempt; at the threshold it places a block.
func (l *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	key := l.failKey(email, ipHash)

	fails, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if fails == 1 {
		// First failure opens the counting window.
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if int(fails) >= l.maxFails {
		if err := l.rdb.Set(ctx, l.blockKey(email, ipHash), 1, l.blockFor).Err(); err != nil {
			return false, 0, err
		}
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
