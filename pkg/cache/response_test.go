package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	kv := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewResponseCache(kv, time.Minute)
}

func TestArgHashIsDeterministic(t *testing.T) {
	a := ArgHash("mbid-1", 5)
	b := ArgHash("mbid-1", 5)
	if a != b {
		t.Errorf("expected identical args to hash identically, got %q vs %q", a, b)
	}
	if c := ArgHash("mbid-2", 5); c == a {
		t.Error("expected different args to hash differently")
	}
}

func TestGetOrLoadCallsLoadOnMiss(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}
	v, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", ArgHash("mbid-1"), load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "value" || calls != 1 {
		t.Errorf("unexpected result %q with %d calls", v, calls)
	}
}

func TestGetOrLoadServesFromCacheOnHit(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}
	key := ArgHash("mbid-1")
	if _, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", key, load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", key, load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "value" || calls != 1 {
		t.Errorf("expected cached value without a second load call, got %q with %d calls", v, calls)
	}
}

func TestGetOrLoadPropagatesLoadError(t *testing.T) {
	c := newTestCache(t)
	load := func(ctx context.Context) (string, error) {
		return "", errors.New("upstream down")
	}
	if _, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", ArgHash("mbid-1"), load); err == nil {
		t.Error("expected load error to propagate")
	}
}

func TestInvalidateClearsCachedEntry(t *testing.T) {
	c := newTestCache(t)
	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}
	key := ArgHash("mbid-1")
	if _, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", key, load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Invalidate(context.Background(), "metadata", "artist-languages", key)
	if _, err := GetOrLoad(context.Background(), c, "metadata", "artist-languages", key, load); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected invalidate to force a reload, got %d calls", calls)
	}
}
