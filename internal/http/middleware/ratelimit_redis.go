package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"magicpic_admin/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter shares rdb with the limiter middleware. If rdb is nil
// or unreachable the middleware falls back to in-process counters.
func InitRedisRateLimiter(rdb *redis.Client) {
	if rdb == nil {
		redisClient = nil
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting in memory", "error", err)
		redisClient = nil
		return
	}
	redisClient = rdb
}

// RedisRateLimit implements a fixed-window limiter using Redis INCR/EXPIRE.
// key format: rl:<scope>:<window_seconds>:<client ip>
func RedisRateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return rateLimit(scope, maxRequests, window, func(c *gin.Context) string { return c.ClientIP() })
}

// AdminRateLimit limits an authenticated admin rather than an IP, so admins
// behind one proxy do not share a budget. Requires Session to run first.
// key format: rl:<scope>:<window_seconds>:<admin key>
func AdminRateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return rateLimit(scope, maxRequests, window, AdminKeyFrom)
}

func rateLimit(scope string, maxRequests int, window time.Duration, identify func(*gin.Context) string) gin.HandlerFunc {
	fallback := newMemoryLimiter(maxRequests, window)
	return func(c *gin.Context) {
		ident := identify(c)
		if ident == "" {
			Unauthorized(c)
			return
		}
		if redisClient == nil {
			if !fallback.allow(scope + ":" + ident) {
				block(c, scope, window)
				return
			}
			RLRequests.WithLabelValues(scope).Inc()
			c.Next()
			return
		}

		key := "rl:" + scope + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// fail-open
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			block(c, scope, window)
			return
		}

		RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}

func block(c *gin.Context, scope string, window time.Duration) {
	RLBlocked.WithLabelValues(scope).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate limit exceeded",
		"retry_after": int(window.Seconds()),
	})
}
