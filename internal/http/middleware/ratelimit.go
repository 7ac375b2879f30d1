package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auctionengine/internal/http/httperr"
	"auctionengine/internal/redis/redis_functions"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type functionCaller interface {
	FCall(ctx context.Context, function string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLimiter is a sliding-window limiter shared by every instance.
type RedisLimiter struct {
	rdb    functionCaller
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb functionCaller, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	res, err := l.rdb.FCall(ctx, redis_functions.RateLimitHit, []string{key},
		now.UnixMilli(), l.window.Milliseconds(), l.limit, member).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// RateLimit limits callers per user, or per client IP when anonymous. The
// request is let through when the limiter itself fails.
func RateLimit(l Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:" + scope + ":ip:" + c.ClientIP()
		if id, ok := UserID(c); ok {
			key = "rate_limit:" + scope + ":user:" + id.String()
		}

		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			zap.L().Warn("rate_limit_unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", "1")
			httperr.Abort(c, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		c.Next()
	}
}
