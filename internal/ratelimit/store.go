package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore holds per-key fixed-window counters.
type CounterStore interface {
	// IncrementAndGet atomically increments key, starting a window of the
	// given length on the first hit, and returns the new count and the
	// time left in the window.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// TTL returns the time left in the window for key, or zero when no window is open.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// incrScript increments and sets the expiry in one round trip. The expiry is
// repaired when a key somehow lost it.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisClient is the subset of *redis.Client used by RedisStore.
type RedisClient interface {
	redis.Scripter
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisStore keeps counters in Redis so limits hold across instances.
type RedisStore struct {
	client RedisClient
}

// NewRedisStore creates a store on client.
func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("increment %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("increment %s: unexpected reply %v", key, res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

const sweepThreshold = 1024

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. Limits are per instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (s *MemoryStore) IncrementAndGet(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, errors.New("window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		if len(s.windows) >= sweepThreshold {
			s.sweep(now)
		}
		w = &memoryWindow{expiresAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.expiresAt.Sub(now), nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		return 0, nil
	}
	return w.expiresAt.Sub(now), nil
}

// sweep drops expired windows. Callers hold mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, k)
		}
	}
}
