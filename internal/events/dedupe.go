package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper remembers provider event ids so replayed webhook deliveries
// can be skipped cheaply. Keys expire after ttl; reconciliation stays correct
// without them because every mutation is keyed by provider references.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func dedupeKey(eventID string) string {
	return "stripe:event:" + eventID
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupeKey(eventID)).Result()
	return n > 0, err
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupeKey(eventID), 1, d.ttl).Err()
}
