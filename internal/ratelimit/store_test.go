package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeHarness pairs a store with a way to move its clock forward.
type storeHarness struct {
	store   CounterStore
	advance func(d time.Duration)
}

func newRedisHarness(t *testing.T) storeHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storeHarness{store: NewRedisStore(client), advance: mr.FastForward}
}

func newMemoryHarness(t *testing.T) storeHarness {
	t.Helper()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return storeHarness{store: store, advance: func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}}
}

var harnesses = map[string]func(t *testing.T) storeHarness{
	"redis":  newRedisHarness,
	"memory": newMemoryHarness,
}

func TestCounterStore_IncrementAndGet(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)

			count, ttl, err := h.store.IncrementAndGet(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 1, count)
			assert.Equal(t, time.Minute, ttl)

			h.advance(20 * time.Second)
			count, ttl, err = h.store.IncrementAndGet(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)
			assert.Equal(t, 40*time.Second, ttl, "later hits do not extend the window")

			left, err := h.store.TTL(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, 40*time.Second, left)

			h.advance(40 * time.Second)
			left, err = h.store.TTL(ctx, "k")
			require.NoError(t, err)
			assert.Zero(t, left)

			count, _, err = h.store.IncrementAndGet(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 1, count, "expired window starts over")

			other, _, err := h.store.IncrementAndGet(ctx, "other", time.Minute)
			require.NoError(t, err)
			assert.EqualValues(t, 1, other, "keys are independent")
		})
	}
}

func TestCounterStore_ConcurrentIncrements(t *testing.T) {
	for name, newHarness := range harnesses {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			const callers = 50

			var wg sync.WaitGroup
			seen := make(chan int64, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					count, _, err := h.store.IncrementAndGet(context.Background(), "hot", time.Minute)
					if assert.NoError(t, err) {
						seen <- count
					}
				}()
			}
			wg.Wait()
			close(seen)

			unique := make(map[int64]bool)
			for c := range seen {
				assert.False(t, unique[c], "count %d observed twice", c)
				unique[c] = true
			}
			assert.Len(t, unique, callers)
		})
	}
}

func TestMemoryStore_RejectsZeroWindow(t *testing.T) {
	_, _, err := NewMemoryStore().IncrementAndGet(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestRedisStore_RepairsMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("k", "5"))

	count, ttl, err := NewRedisStore(client).IncrementAndGet(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 6, count)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}
