package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning parameters.
type Config struct {
	EnableOriginThrottle bool
	MaxAttempts          int
	Window               time.Duration
}

// Limiter enforces per-account and per-origin login attempt budgets using
// Redis counters. It sits in front of the credential check and is separate
// from the persisted lockout counter.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when either budget is exhausted.
func (l *Limiter) CheckLogin(ctx context.Context, kind, lookup, origin string) error {
	if err := l.checkCounter(ctx, loginAccountKey(kind, lookup)); err != nil {
		return err
	}
	if l.config.EnableOriginThrottle && origin != "" {
		if err := l.checkCounter(ctx, loginOriginKey(kind, origin)); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records one failed attempt for the account+origin pair.
func (l *Limiter) IncrementLogin(ctx context.Context, kind, lookup, origin string) error {
	if _, err := l.incrementWithTTL(ctx, loginAccountKey(kind, lookup)); err != nil {
		return err
	}
	if l.config.EnableOriginThrottle && origin != "" {
		if _, err := l.incrementWithTTL(ctx, loginOriginKey(kind, origin)); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-account counter after a successful login or a
// password reset. The origin counter is left to expire.
func (l *Limiter) ResetLogin(ctx context.Context, kind, lookup string) error {
	if err := l.redis.Del(ctx, loginAccountKey(kind, lookup)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for an account. Missing keys are 0.
func (l *Limiter) Attempts(ctx context.Context, kind, lookup string) (int, error) {
	count, err := l.redis.Get(ctx, loginAccountKey(kind, lookup)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func loginAccountKey(kind, lookup string) string {
	return "ma:login:" + kind + ":" + lookup
}

func loginOriginKey(kind, origin string) string {
	return "ma:login-origin:" + kind + ":" + origin
}
