package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelQueue is an in-process bounded queue. Enqueue never blocks.
type ChannelQueue struct {
	ch     chan PasswordResetNotice
	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{ch: make(chan PasswordResetNotice, size)}
}

func (q *ChannelQueue) Enqueue(_ context.Context, n PasswordResetNotice) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (PasswordResetNotice, error) {
	select {
	case n, ok := <-q.ch:
		if !ok {
			return PasswordResetNotice{}, ErrQueueClosed
		}
		return n, nil
	case <-ctx.Done():
		return PasswordResetNotice{}, ctx.Err()
	}
}

func (q *ChannelQueue) Len() int { return len(q.ch) }

func (q *ChannelQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

const defaultRedisKey = "ma:notify:reset"

// RedisQueue stores notices as JSON in a redis list so several processes can
// share one worker pool.
type RedisQueue struct {
	rdb  redis.UniversalClient
	key  string
	poll time.Duration
}

func NewRedisQueue(rdb redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisQueue{rdb: rdb, key: key, poll: time.Second}
}

func (q *RedisQueue) Enqueue(ctx context.Context, n PasswordResetNotice) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notice: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (PasswordResetNotice, error) {
	for {
		res, err := q.rdb.BRPop(ctx, q.poll, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return PasswordResetNotice{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return PasswordResetNotice{}, ctx.Err()
			}
			return PasswordResetNotice{}, fmt.Errorf("notify: dequeue: %w", err)
		}
		var n PasswordResetNotice
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			return PasswordResetNotice{}, fmt.Errorf("notify: decode notice: %w", err)
		}
		return n, nil
	}
}
