package livecall

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"voicedash/pkg/utils"
)

// Limiter caps how many calls a user may have in flight at once.
// A nil Limiter on the handler disables the cap.
type Limiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

const (
	defaultCallLimit = 1

	// The slot TTL covers a process crash mid-call; a slot is normally
	// released when the call ends.
	defaultSlotTTL = 2 * time.Hour
)

// RedisLimiter enforces the per-user cap across API instances.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = defaultCallLimit
	}
	if ttl <= 0 {
		ttl = defaultSlotTTL
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) key(userID string) string {
	return "livecall:active:" + userID
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key(userID), l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, userID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key(userID))
}
