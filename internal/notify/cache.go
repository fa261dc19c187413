package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "notify:unread:"

// UnreadCache keeps per-recipient unread counts in Redis. The database count
// stays the source of truth; the cache is invalidated on every write path and
// repopulated on read. A nil cache or client degrades to pass-through.
type UnreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCache instantiates the cache helper.
func NewUnreadCache(client *redis.Client, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UnreadCache{client: client, ttl: ttl}
}

func unreadKey(recipient uuid.UUID) string {
	return unreadKeyPrefix + recipient.String()
}

// Get returns the cached count. The boolean reports a warm hit.
func (c *UnreadCache) Get(ctx context.Context, recipient uuid.UUID) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	count, err := c.client.Get(ctx, unreadKey(recipient)).Int64()
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count with the cache TTL. Failures are ignored; the next
// read falls through to the database.
func (c *UnreadCache) Set(ctx context.Context, recipient uuid.UUID, count int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, unreadKey(recipient), count, c.ttl).Err()
}

// Invalidate removes the cached count after a write.
func (c *UnreadCache) Invalidate(ctx context.Context, recipient uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, unreadKey(recipient)).Err()
}
