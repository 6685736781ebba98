// Package ratelimit provides the scoped-acquisition rate limiting primitive
// used by every service adapter: a per-adapter permit whose release is
// guaranteed on all exit paths.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between successive calls. Acquire
// blocks until the next call is permitted or ctx is done.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Local is an in-process limiter guarding a single last-request timestamp,
// mirroring the MusicBrainz client's throttle() exactly: at most one
// request per Interval, enforced with a mutex and a sleep.
type Local struct {
	Interval time.Duration

	mu      sync.Mutex
	lastReq time.Time
}

// NewLocal returns a Limiter admitting at most one call per interval.
func NewLocal(interval time.Duration) *Local {
	return &Local{Interval: interval}
}

// Acquire blocks until the interval since the previous acquisition has
// elapsed, then records the new timestamp and returns. It never returns a
// non-nil error unless ctx is canceled while waiting.
func (l *Local) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elapsed := time.Since(l.lastReq); elapsed < l.Interval {
		wait := l.Interval - elapsed
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.lastReq = time.Now()
	return nil
}

// Scoped acquires the limiter and returns a no-op release function, giving
// callers a single defer-friendly call site:
//
//	release, err := ratelimit.Scoped(ctx, limiter)
//	if err != nil { return err }
//	defer release()
func Scoped(ctx context.Context, l Limiter) (func(), error) {
	if err := l.Acquire(ctx); err != nil {
		return func() {}, err
	}
	return func() {}, nil
}
