package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter: счётчик отправок в фиксированном окне, общий для всех инстансов.
type RateLimiter struct {
	c   *redis.Client
	now func() time.Time
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		now: time.Now,
	}
}

// Allow увеличивает счётчик текущего окна и возвращает (allowed, currentCount).
// Окно привязано к началу интервала, поэтому попытки после отказа его не продлевают.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	bucket := rl.now().UnixNano() / int64(window)
	k := fmt.Sprintf("%s:%d", key, bucket)

	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
