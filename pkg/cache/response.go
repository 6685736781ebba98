// Package cache provides a write-through response cache for service
// adapters and a distributed rate limiter, both backed by Redis. Unlike the
// ExclusionCache (pkg/store), nothing here is semantically meaningful — it
// is purely an optimization and is safe to flush at any time.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nichefm/nichefm/pkg/kvkeys"
	"github.com/redis/go-redis/v9"
)

// ResponseCache is a write-through cache in front of a slow adapter call.
type ResponseCache struct {
	kv  *redis.Client
	ttl time.Duration
}

// NewResponseCache returns a ResponseCache storing entries for ttl.
func NewResponseCache(kv *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{kv: kv, ttl: ttl}
}

// ArgHash deterministically hashes call arguments into a cache-key segment.
func ArgHash(args ...any) string {
	b, _ := json.Marshal(args)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// GetOrLoad returns the cached value for (service, endpoint, argHash) if
// present, otherwise calls load, caches the result, and returns it. A cache
// read/write failure never fails the call — it degrades to always calling
// load, matching the write-through discipline of the queue cache this
// package is modeled on.
func GetOrLoad[T any](ctx context.Context, c *ResponseCache, service, endpoint, argHash string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	key := kvkeys.AdapterResponse(service, endpoint, argHash)

	if raw, err := c.kv.Get(ctx, key).Result(); err == nil {
		var v T
		if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr == nil {
			return v, nil
		}
		slog.Warn("response cache: corrupt entry, bypassing", "key", key)
	} else if err != redis.Nil {
		slog.Warn("response cache: read failed, bypassing", "key", key, "err", err)
	}

	v, err := load(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s.%s: %w", service, endpoint, err)
	}

	if b, err := json.Marshal(v); err == nil {
		if err := c.kv.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("response cache: write failed", "key", key, "err", err)
		}
	}
	return v, nil
}

// Invalidate deletes a cached response, e.g. after a write that would make
// it stale.
func (c *ResponseCache) Invalidate(ctx context.Context, service, endpoint, argHash string) {
	c.kv.Del(ctx, kvkeys.AdapterResponse(service, endpoint, argHash))
}
