package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "login:"

// RedisLimiter は失敗回数とロックを Redis に置くリミッターです。
// キーは TTL 付きなので期限切れの記録は Redis 側で消えます。
type RedisLimiter struct {
	Window      time.Duration
	LockFor     time.Duration
	MaxAttempts int

	rdb *redis.Client
}

// NewRedisLimiter は既定値の RedisLimiter を作成します。
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		Window:      defaultWindow,
		LockFor:     defaultLockFor,
		MaxAttempts: defaultMaxAttempts,
		rdb:         rdb,
	}
}

func failKey(key string) string { return redisKeyPrefix + "fail:" + key }
func lockKey(key string) string { return redisKeyPrefix + "lock:" + key }

// RetryAfter は Throttle を満たします。
func (l *RedisLimiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, lockKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read login lock: %w", err)
	}
	// キーが無い (-2) / TTL 無し (-1) はロックしていない扱い
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordFailure は Throttle を満たします。
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	count, err := l.rdb.Incr(ctx, failKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, failKey(key), l.Window).Err(); err != nil {
			return 0, fmt.Errorf("record login failure: %w", err)
		}
	}
	if count < int64(l.MaxAttempts) {
		return l.MaxAttempts - int(count), nil
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey(key), 1, l.LockFor)
		pipe.Del(ctx, failKey(key))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("lock login: %w", err)
	}
	return 0, nil
}

// Reset は Throttle を満たします。
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, failKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
