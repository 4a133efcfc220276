package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/model"
)

// PaperCache keeps the candidate projection of a session's questions in
// Redis. Entries never carry answer keys.
type PaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPaperCache creates a PaperCache.
func NewPaperCache(rdb *redis.Client, ttl time.Duration) *PaperCache {
	return &PaperCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached paper, or nil on a miss.
func (c *PaperCache) Get(ctx context.Context, sessionID uuid.UUID) (*model.Paper, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.SessionPaperKey(sessionID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.Paper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// Set caches a paper.
func (c *PaperCache) Set(ctx context.Context, paper *model.Paper) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.SessionPaperKey(paper.SessionID.String()), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	return nil
}

// Delete drops a cached paper.
func (c *PaperCache) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.SessionPaperKey(sessionID.String())).Err()
}
