package cache

import (
	"context"
	"time"
)

// Counter is the atomic fixed-window counter the rate limiter runs on. The
// first increment of a key starts its window; the returned TTL is the time
// left until the window resets.
type Counter interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// KV holds small transient values with a TTL.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Store is the shared cache backend, implemented by the Redis client and by
// the SQL fallback table.
type Store interface {
	Counter
	KV
}
