package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis so every server instance counts the same
// principal against the same window.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a counter store over an existing Redis client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// incrScript increments the counter and sets its expiry only on the first hit
// of a window, in one atomic step. Two instances incrementing concurrently
// both observe the true count.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// Incr counts one hit for key within the window.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := incrScript.Run(ctx, s.client, []string{s.keyPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return count, nil
}
