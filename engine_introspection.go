package marketauth

import (
	"context"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/store"
)

// HealthStatus is an on-demand backend health result. Redis fields stay
// zero when no redis client was configured.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Healthy reports whether every configured backend answered.
func (h HealthStatus) Healthy(redisConfigured bool) bool {
	return h.StoreAvailable && (!redisConfigured || h.RedisAvailable)
}

// Health probes the account store with an empty transaction and pings redis
// when one is configured.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	var hs HealthStatus
	if e == nil || e.store == nil {
		return hs
	}

	start := time.Now()
	err := e.store.WithTx(ctx, func(store.Tx) error { return nil })
	hs.StoreLatency = time.Since(start)
	hs.StoreAvailable = err == nil

	if e.redis != nil {
		start = time.Now()
		err = e.redis.Ping(ctx).Err()
		hs.RedisLatency = time.Since(start)
		hs.RedisAvailable = err == nil
	}
	return hs
}

// RedisConfigured reports whether the engine was built with a redis client.
func (e *Engine) RedisConfigured() bool {
	return e != nil && e.redis != nil
}

// LoginAttempts returns the throttle counter for an email. It is 0 when the
// throttle is disabled.
func (e *Engine) LoginAttempts(ctx context.Context, kind account.Kind, email string) (int, error) {
	if _, err := e.kindConfig(kind); err != nil {
		return 0, err
	}
	if e.throttle == nil || email == "" {
		return 0, nil
	}
	n, err := e.throttle.Attempts(ctx, string(kind), e.lookup.Hash(email))
	if err != nil {
		return 0, transient("login attempts", err)
	}
	return n, nil
}
