// Package ratelimit implements the gateway's concurrency and resource
// governor: fixed-window, sliding-window, token-bucket, concurrent, and
// cost-based limiting, all expressed over a small abstract key-value Store
// so the same bucket logic runs against either an in-process map or a
// replicated Redis backend.
package ratelimit

import (
	"context"
	"time"
)

// Store is the abstract backend every bucket algorithm is built on. It is
// deliberately narrow — increment-with-ttl, point read, ttl introspection,
// expire, delete — so both kvstore_memory.go and kvstore_redis.go can
// implement it with identical observable behavior.
type Store interface {
	// Incr adds delta to the integer stored at key, creating it at 0 first
	// if absent, and returns the new value. When Incr creates the key and
	// ttl > 0, it also sets that TTL; an existing key keeps whatever TTL it
	// has, or none (mirroring Redis's common INCR-then-EXPIRE-if-new pattern
	// collapsed into a single call).
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Get returns the current integer value at key, or 0 if absent.
	Get(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining time-to-live for key, or 0 if the key has
	// no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets (or refreshes) the TTL on an existing key. A no-op if the
	// key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes key.
	Del(ctx context.Context, key string) error
}
