package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

// RedisGuard serializes violation accounting per session across tabs and
// server instances with SET NX. The hold time bounds how long a crashed
// holder can block accounting.
type RedisGuard struct {
	rdb  *redis.Client
	hold time.Duration
}

// NewRedisGuard creates a RedisGuard.
func NewRedisGuard(rdb *redis.Client, hold time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, hold: hold}
}

var _ proctor.Guard = (*RedisGuard)(nil)

func (g *RedisGuard) Acquire(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	key := config.CacheKey.SessionViolationGuardKey(sessionID.String())
	ok, err := g.rdb.SetNX(ctx, key, 1, g.hold).Result()
	if err != nil {
		return false, fmt.Errorf("acquire violation guard: %w", err)
	}
	return ok, nil
}

// Release shortens the guard's lifetime to the cooldown instead of deleting
// it, so near-simultaneous events from other tabs are still dropped.
func (g *RedisGuard) Release(ctx context.Context, sessionID uuid.UUID, after time.Duration) error {
	key := config.CacheKey.SessionViolationGuardKey(sessionID.String())
	if after <= 0 {
		return g.rdb.Del(ctx, key).Err()
	}
	return g.rdb.PExpire(ctx, key, after).Err()
}
