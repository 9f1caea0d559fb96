// Package queue buffers change notifications between the store's change feed
// and the refresh workers.
//
// Every notification means the same thing (re-list everything), so a full
// queue loses nothing: the pending items already guarantee a refresh.
package queue

import (
	"context"
	"sync"

	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/metrics"
)

const defaultQueueCapacity = 64

// Queue provides non-blocking enqueue, blocking Next and non-blocking Drain.
type Queue interface {
	// Enqueue adds c without blocking. Returns false when the queue is full
	// or closed.
	Enqueue(ctx context.Context, c model.Change) bool

	// Next blocks until a change is available, ctx is done, or the queue is
	// closed and empty.
	Next(ctx context.Context) (model.Change, error)

	// Drain removes every queued change without blocking.
	Drain() []model.Change

	// Len returns the current number of queued changes.
	Len() int

	// Close stops further enqueues. Queued changes can still be read.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	changes  chan model.Change
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.changes = make(chan model.Change, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.updateGauges()
	return q
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.changes)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Enqueue adds a change to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c model.Change) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	default:
	}

	select {
	case q.changes <- c:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	default:
		metrics.RecordQueueEnqueueError("full")
		metrics.RecordNotificationCoalesced()
		return false
	}
}

// Next returns the oldest queued change.
func (q *InMemoryQueue) Next(ctx context.Context) (model.Change, error) {
	select {
	case <-ctx.Done():
		return model.Change{}, ctx.Err()
	case c, ok := <-q.changes:
		if !ok {
			return model.Change{}, ErrClosed
		}
		metrics.RecordQueueDequeue()
		q.updateGauges()
		return c, nil
	}
}

// Drain empties the queue.
func (q *InMemoryQueue) Drain() []model.Change {
	var out []model.Change
	for {
		select {
		case c, ok := <-q.changes:
			if !ok {
				return out
			}
			metrics.RecordQueueDequeue()
			out = append(out, c)
		default:
			q.updateGauges()
			return out
		}
	}
}

// Len returns the current number of queued changes.
func (q *InMemoryQueue) Len() int {
	return len(q.changes)
}

// Close shuts the queue. Calling it again is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
