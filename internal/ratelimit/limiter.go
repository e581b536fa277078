package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter bounds calls per key over a fixed window.
type Limiter struct {
	store CounterStore
}

// NewLimiter creates a limiter backed by store.
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Allow counts one call for key. The call is allowed while the count within
// the current window is at most limit. Windows reset when they expire.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	count, ttl, err := l.store.IncrementAndGet(ctx, key, window)
	if err != nil {
		return Decision{Limit: limit}, err
	}

	d := Decision{
		Allowed: count <= int64(limit),
		Count:   count,
		Limit:   limit,
	}
	if remaining := int64(limit) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
