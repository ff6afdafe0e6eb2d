package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduplicator remembers webhook event ids that were already handled
type EventDeduplicator interface {
	// MarkSeen records eventID and reports whether this is the first delivery
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	// Forget drops eventID so a redelivery is processed again
	Forget(ctx context.Context, eventID string) error
}

// RedisEventDeduplicator stores seen event ids in Redis with a TTL
type RedisEventDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisEventDeduplicator creates a Redis-backed deduplicator
func NewRedisEventDeduplicator(client *redis.Client, ttl time.Duration) *RedisEventDeduplicator {
	return &RedisEventDeduplicator{
		client: client,
		ttl:    ttl,
		prefix: "webhook:payment:",
	}
}

// MarkSeen uses SETNX so concurrent deliveries of one event see exactly one winner
func (d *RedisEventDeduplicator) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return ok, nil
}

// Forget removes eventID so a redelivery is processed again
func (d *RedisEventDeduplicator) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.prefix+eventID).Err()
}
