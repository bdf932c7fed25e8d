package cooldown

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTracker stores cooldown flags as expiring Redis keys.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker creates a Redis-backed cooldown tracker.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

// IsSuppressed reports whether the rule's cooldown key exists.
func (t *RedisTracker) IsSuppressed(ctx context.Context, ruleID string) (bool, error) {
	n, err := t.client.Exists(ctx, Key(ruleID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown for rule %s: %w", ruleID, err)
	}
	return n > 0, nil
}

// Suppress sets the cooldown key, overwriting any existing one.
func (t *RedisTracker) Suppress(ctx context.Context, ruleID string, cooldownSeconds int64) error {
	if cooldownSeconds <= 0 {
		return nil
	}
	if err := t.client.Set(ctx, Key(ruleID), "1", ttl(cooldownSeconds)).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown for rule %s: %w", ruleID, err)
	}
	return nil
}

// Claim sets the cooldown key with SET NX EX.
func (t *RedisTracker) Claim(ctx context.Context, ruleID string, cooldownSeconds int64) (bool, error) {
	if cooldownSeconds <= 0 {
		return true, nil
	}
	ok, err := t.client.SetNX(ctx, Key(ruleID), "1", ttl(cooldownSeconds)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim cooldown for rule %s: %w", ruleID, err)
	}
	return ok, nil
}
