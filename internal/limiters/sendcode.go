package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SendCodeConfig holds configuration for the per-account code delivery throttle.
type SendCodeConfig struct {
	MaxPerWindow int // <= 0 disables the throttle
	Window       time.Duration
}

var (
	// ErrSendCodeThrottled indicates the account exhausted its delivery window.
	ErrSendCodeThrottled = errors.New("code delivery throttled")
	// ErrSendCodeUnavailable indicates the throttle backend is unreachable.
	ErrSendCodeUnavailable = errors.New("code delivery throttle backend unavailable")
)

// SendCodeLimiter throttles out-of-band code delivery per account with a
// fixed window counter, so a challenge-required login loop cannot flood a
// phone number or mailbox.
type SendCodeLimiter struct {
	redis  redis.UniversalClient
	config SendCodeConfig
}

// NewSendCodeLimiter creates a new send-code limiter.
func NewSendCodeLimiter(redisClient redis.UniversalClient, cfg SendCodeConfig) *SendCodeLimiter {
	return &SendCodeLimiter{redis: redisClient, config: cfg}
}

func (l *SendCodeLimiter) key(userID string) string {
	return "asc:" + userID
}

// Allow records one delivery and reports whether it is within the window
// budget. The counter is created with the window TTL on first use.
func (l *SendCodeLimiter) Allow(ctx context.Context, userID string) error {
	if l.config.MaxPerWindow <= 0 || userID == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendCodeUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSendCodeUnavailable, err)
		}
	}

	if count > int64(l.config.MaxPerWindow) {
		return ErrSendCodeThrottled
	}
	return nil
}

// Reset clears the delivery counter for an account.
func (l *SendCodeLimiter) Reset(ctx context.Context, userID string) error {
	if l.config.MaxPerWindow <= 0 || userID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSendCodeUnavailable, err)
	}
	return nil
}
