package cache

import (
	"context"
	"time"

	"github.com/nichefm/nichefm/pkg/kvkeys"
	"github.com/nichefm/nichefm/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a distributed token-bucket rate limiter backed by Redis,
// so multiple process instances share one budget against a given upstream
// service. It satisfies ratelimit.Limiter.
type RedisLimiter struct {
	kv       *redis.Client
	service  string
	interval time.Duration
}

// NewRedisLimiter returns a Limiter admitting at most one call per interval,
// shared across every process using the same Redis instance and service
// name.
func NewRedisLimiter(kv *redis.Client, service string, interval time.Duration) *RedisLimiter {
	return &RedisLimiter{kv: kv, service: service, interval: interval}
}

// Acquire blocks until the shared bucket admits a call. Implemented as a
// SET NX with the interval as TTL: the first caller to set the key wins the
// slot immediately; later callers poll briefly until the key expires.
func (r *RedisLimiter) Acquire(ctx context.Context) error {
	key := kvkeys.RateLimitBucket(r.service)
	for {
		ok, err := r.kv.SetNX(ctx, key, 1, r.interval).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		ttl, err := r.kv.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		wait := ttl
		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ ratelimit.Limiter = (*RedisLimiter)(nil)
