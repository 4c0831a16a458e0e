package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiter_BlocksAfterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "user", "h1", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "user", "h1", ""); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := l.CheckLogin(ctx, "user", "h1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "vendor", "h1", ""); err != nil {
		t.Fatalf("kinds must not share counters, got %v", err)
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user", "h1", "")
	if err := l.CheckLogin(ctx, "user", "h1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "user", "h1", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestLimiter_OriginThrottle(t *testing.T) {
	l, _ := newTestLimiter(t, Config{EnableOriginThrottle: true, MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "admin", "a", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "admin", "b", "10.0.0.1")
	if err := l.CheckLogin(ctx, "admin", "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected origin throttle, got %v", err)
	}
	if err := l.CheckLogin(ctx, "admin", "c", "10.0.0.2"); err != nil {
		t.Fatalf("other origin must pass, got %v", err)
	}
}

func TestLimiter_ResetLogin(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user", "h1", "")
	_ = l.IncrementLogin(ctx, "user", "h1", "")
	if n, _ := l.Attempts(ctx, "user", "h1"); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if err := l.ResetLogin(ctx, "user", "h1"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, _ := l.Attempts(ctx, "user", "h1"); n != 0 {
		t.Fatalf("expected 0 attempts, got %d", n)
	}
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 5, Window: time.Minute})
	mr.Close()
	if err := l.CheckLogin(context.Background(), "user", "h1", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
