package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/bookauth/domain"
)

// LoginThrottleImpl implements domain.LoginThrottle with a fixed window counter in Redis
type LoginThrottleImpl struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewLoginThrottle allows limit attempts per key within window
func NewLoginThrottle(client *redis.Client, limit int, window time.Duration) domain.LoginThrottle {
	return &LoginThrottleImpl{
		client: client,
		prefix: "login_throttle:",
		limit:  int64(limit),
		window: window,
	}
}

// Allow counts one attempt for key. When the budget is spent it returns false and
// the time left in the window.
func (l *LoginThrottleImpl) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	// EXPIRE NX opens the window on the first hit and repairs a counter left without a TTL
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("login throttle: %w", err)
	}
	if incr.Val() <= l.limit {
		return true, 0, nil
	}

	wait := ttl.Val()
	if wait <= 0 {
		wait = l.window
	}
	return false, wait, nil
}
