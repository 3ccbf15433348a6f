package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning. A zero MaxAttempts disables the limiter.
type Config struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Limiter counts failed logins per identity.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a Limiter. A nil Limiter is valid and never limits.
func New(client redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		return nil
	}
	return &Limiter{
		redis:  client,
		prefix: prefix,
		config: cfg,
	}
}

// Check returns ErrRateLimited once MaxAttempts failures have been
// recorded in the current window.
func (l *Limiter) Check(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(email)).Int64()
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

// Fail records a failed attempt, opening the window on the first one.
func (l *Limiter) Fail(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}

	key := l.key(email)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Reset clears the window after a successful login.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count in the current window.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	if l == nil {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

func (l *Limiter) key(email string) string {
	return l.prefix + ":rl:" + email
}
