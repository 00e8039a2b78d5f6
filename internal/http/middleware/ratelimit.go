package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

// counterStore is the part of the redis client the limiter needs.
type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter is a fixed-window counter in redis keyed by user, or by client IP for
// anonymous requests. Redis errors let the request through.
type RateLimiter struct {
	store counterStore
	log   *logger.Logger
}

func NewRateLimiter(log *logger.Logger, rdb redis.UniversalClient) *RateLimiter {
	rl := &RateLimiter{log: log.With("Middleware", "RateLimiter")}
	if rdb != nil {
		rl.store = rdb
	}
	return rl
}

func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) gin.HandlerFunc {
	if rl == nil || rl.store == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		who := "ip:" + c.ClientIP()
		if sd := ctxutil.GetSessionData(ctx); sd != nil && sd.UserID != "" {
			who = "user:" + sd.UserID
		}
		key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, who)

		count, err := rl.store.Incr(ctx, key).Result()
		if err != nil {
			rl.log.Warn("rate limit counter unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.store.Expire(ctx, key, window)
		}
		if count > int64(limit) {
			observability.Current().IncRateLimited(keySuffix)
			ttl, _ := rl.store.TTL(ctx, key).Result()
			if ttl > 0 {
				c.Header("Retry-After", fmt.Sprintf("%.0f", ttl.Seconds()))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
