package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript atomically increments a counter, setting its TTL only the
// first time it is created, matching the "INCR then EXPIRE NX" idiom
// without a round trip for the common case where the key already exists.
// KEYS[1] = key
// ARGV[1] = delta
// ARGV[2] = ttl in milliseconds (0 means no expiry)
// Returns: the new value.
var incrScript = redis.NewScript(`
	local key   = KEYS[1]
	local delta = tonumber(ARGV[1])
	local ttlMs = tonumber(ARGV[2])

	local exists = redis.call('EXISTS', key)
	local value = redis.call('INCRBY', key, delta)
	if exists == 0 and ttlMs > 0 then
		redis.call('PEXPIRE', key, ttlMs)
	end
	return value
`)

// RedisStore is a Store backed by a shared Redis instance, for rate
// limiting across multiple gateway replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	res, err := incrScript.Run(ctx, r.client, []string{key}, delta, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return res, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
