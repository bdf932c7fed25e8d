package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// pruneAndCountScript removes entries scored below ARGV[2] and counts the
// entries scored at or above ARGV[1]. Running both in one script keeps the
// pair atomic for the key.
const pruneAndCountScript = `
	local key = KEYS[1]
	local count_from = ARGV[1]
	local prune_before = ARGV[2]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. prune_before)
	return redis.call('ZCOUNT', key, count_from, '+inf')
`

// RedisStore keeps each window as a sorted set of event ids scored by their
// timestamp in milliseconds.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
	mode   PruneMode
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPruneMode sets the prune mode. The default is PruneMaxWindow.
func WithRedisPruneMode(mode PruneMode) RedisOption {
	return func(s *RedisStore) { s.mode = mode }
}

// WithRedisClock overrides the clock used for window cutoffs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		script: redis.NewScript(pruneAndCountScript),
		mode:   PruneMaxWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record adds the event to the window and refreshes the key TTL.
func (s *RedisStore) Record(ctx context.Context, tenantID, eventType, eventID string, timestamp time.Time) error {
	key := Key(tenantID, eventType)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestamp.UnixMilli()), Member: eventID})
	pipe.Expire(ctx, key, KeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record event %s in window %s: %w", eventID, key, err)
	}
	return nil
}

// CountInWindow prunes and counts the window in a single script call.
func (s *RedisStore) CountInWindow(ctx context.Context, tenantID, eventType string, windowSeconds int64) (int64, error) {
	key := Key(tenantID, eventType)
	countFrom, pruneBefore := cutoffs(s.mode, s.now(), windowSeconds)

	n, err := s.script.Run(ctx, s.client, []string{key},
		strconv.FormatInt(countFrom, 10),
		strconv.FormatInt(pruneBefore, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to count window %s: %w", key, err)
	}
	return n, nil
}

// Remove deletes the event from the window.
func (s *RedisStore) Remove(ctx context.Context, tenantID, eventType, eventID string) error {
	key := Key(tenantID, eventType)
	if err := s.client.ZRem(ctx, key, eventID).Err(); err != nil {
		return fmt.Errorf("failed to remove event %s from window %s: %w", eventID, key, err)
	}
	return nil
}
