package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window per-chat counter backed by Redis, so the
// limit holds across bot restarts and replicas.
type RateLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, chatID int64) (bool, error) {
	key := chatKey(chatID)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}
	return count <= int64(r.limit), nil
}

// Reset clears the chat's window, used when an admin unblocks a chat.
func (r *RateLimiter) Reset(ctx context.Context, chatID int64) error {
	return r.client.Del(ctx, chatKey(chatID))
}

func chatKey(chatID int64) string {
	return fmt.Sprintf("rate_limit:%d", chatID)
}
