package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments and arms the expiry in one round trip so a crash
// between the two can never leave a counter without a TTL.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStore keeps counters in Redis, shared by every replica.
type RedisStore struct {
	rdb    RedisClient
	prefix string
}

// RedisClient is the subset of go-redis used by RedisStore.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisStore(rdb RedisClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrScript.Run(ctx, s.rdb, []string{s.prefix + key}, window.Milliseconds()).Int64()
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
