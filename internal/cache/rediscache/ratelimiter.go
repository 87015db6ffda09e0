package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter: счётчик в окне фиксированной длины (INCR + EXPIRE).
// Держит общий на все инстансы vin-api бюджет запросов в публичный реестр.
type RateLimiter struct {
	c      *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(addr string, limitPerMinute int64) *RateLimiter {
	return &RateLimiter{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		limit:  limitPerMinute,
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow делает INCR по ключу и ставит TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowUpstream: минутное окно для конкретного апстрима. limit<=0 отключает лимит.
func (rl *RateLimiter) AllowUpstream(ctx context.Context, upstream string) (bool, error) {
	if rl.limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("rl:upstream:%s:%s", upstream, rl.now().UTC().Format("200601021504"))
	ok, _, err := rl.Allow(ctx, key, rl.limit, rl.window+10*time.Second)
	return ok, err
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
