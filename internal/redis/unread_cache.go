package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// UnreadCache keeps per-user unread message badge counters. The
// database unread state is authoritative; this cache only serves the
// cheap "total unread" badge reads so they never hit the messages
// table. A miss falls back to the database and repopulates.
type UnreadCache interface {
	Increment(ctx context.Context, userID uint) (int64, error)
	// Get returns (count, true) on a hit and (0, false) on a miss.
	Get(ctx context.Context, userID uint) (int64, bool, error)
	Set(ctx context.Context, userID uint, count int64) error
	// Decrease subtracts cleared messages after a mark-read, flooring
	// at zero.
	Decrease(ctx context.Context, userID uint, by int64) error
}

type redisUnreadCache struct {
	client *redis.Client
}

// NewRedisUnreadCache creates a Redis-backed UnreadCache.
func NewRedisUnreadCache(client *redis.Client) UnreadCache {
	return &redisUnreadCache{client: client}
}

const unreadKeyPrefix = "unread:total:"

func unreadKey(userID uint) string {
	return fmt.Sprintf("%s%d", unreadKeyPrefix, userID)
}

func (c *redisUnreadCache) Increment(ctx context.Context, userID uint) (int64, error) {
	n, err := c.client.Incr(ctx, unreadKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing unread counter for user %d: %w", userID, err)
	}
	return n, nil
}

func (c *redisUnreadCache) Get(ctx context.Context, userID uint) (int64, bool, error) {
	n, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading unread counter for user %d: %w", userID, err)
	}
	return n, true, nil
}

func (c *redisUnreadCache) Set(ctx context.Context, userID uint, count int64) error {
	if err := c.client.Set(ctx, unreadKey(userID), count, 0).Err(); err != nil {
		return fmt.Errorf("setting unread counter for user %d: %w", userID, err)
	}
	return nil
}

func (c *redisUnreadCache) Decrease(ctx context.Context, userID uint, by int64) error {
	if by <= 0 {
		return nil
	}
	n, err := c.client.DecrBy(ctx, unreadKey(userID), by).Result()
	if err != nil {
		return fmt.Errorf("decreasing unread counter for user %d: %w", userID, err)
	}
	if n < 0 {
		// Counter drifted, clamp it.
		return c.Set(ctx, userID, 0)
	}
	return nil
}
