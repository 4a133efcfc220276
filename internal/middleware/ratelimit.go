package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/response"
)

// RateLimiter is a fixed-window limiter shared by every instance through
// Redis. Clients are keyed by JWT user when present, else by IP.
type RateLimiter struct {
	rdb      *redis.Client
	name     string
	limit    int64
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRateLimiter creates a RateLimiter allowing limit requests per interval.
func NewRateLimiter(rdb *redis.Client, name string, limit int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:      rdb,
		name:     name,
		limit:    int64(limit),
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "ratelimit").Str("limiter", name).Logger(),
	}
}

// Allow counts one request for client and reports whether it is within the
// limit.
func (rl *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	window := rl.now().UnixNano() / int64(rl.interval)
	key := config.CacheKey.RateLimitKey(rl.name, client, window)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= rl.limit, nil
}

// Middleware returns a Gin middleware enforcing the limit. Redis failures let
// the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := "ip:" + c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			client = string(claims.TokenType) + ":" + strconv.Itoa(claims.UserID)
		}

		ok, err := rl.Allow(c.Request.Context(), client)
		if err != nil {
			rl.log.Warn().Err(err).Msg("Rate limit check failed")
			c.Next()
			return
		}
		if !ok {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
