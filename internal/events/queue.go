package events

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when the buffer has no room; the event is dropped.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("event queue closed")
)

// Publisher hands events to background consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Queue is a bounded in-process event channel. Publish never blocks.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewQueue creates a queue buffering up to size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Event, size)}
}

// Publish enqueues event or fails immediately.
func (q *Queue) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events returns the receive side for consumers.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Len reports buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting events. Buffered events remain readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
