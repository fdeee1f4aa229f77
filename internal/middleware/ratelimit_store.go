package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/cache"
)

// RateStore counts requests per key within a fixed window. The returned TTL
// is how long until the key's current window resets.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memoryRateStore is the process-local fallback used when no shared cache
// backend is configured. Stale windows are pruned opportunistically during
// increments, so it needs no background goroutine.
type memoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	lastPrune time.Time
	clock     func() time.Time
}

type rateWindow struct {
	count int
	reset time.Time
}

const pruneInterval = time.Minute

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() RateStore {
	return &memoryRateStore{
		windows: make(map[string]*rateWindow),
		clock:   time.Now,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPrune) >= pruneInterval {
		for stale, w := range s.windows {
			if now.After(w.reset) {
				delete(s.windows, stale)
			}
		}
		s.lastPrune = now
	}

	w, ok := s.windows[key]
	if !ok || now.After(w.reset) {
		w = &rateWindow{reset: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.reset.Sub(now), nil
}

// cacheRateStore counts through the shared cache backend, so limits hold
// across instances and restarts.
type cacheRateStore struct {
	counter cache.Counter
}

// NewRedisRateStore builds a RateStore on the Redis cache backend.
func NewRedisRateStore(counter cache.Counter) RateStore {
	return newCacheRateStore(counter)
}

// NewDatabaseRateStore builds a RateStore on the SQL cache table.
func NewDatabaseRateStore(counter cache.Counter) RateStore {
	return newCacheRateStore(counter)
}

func newCacheRateStore(counter cache.Counter) RateStore {
	if counter == nil {
		return nil
	}
	return &cacheRateStore{counter: counter}
}

func (s *cacheRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.counter.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
