package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/nextup/internal/domain/model"
)

func change(op string) model.Change {
	return model.Change{Source: "memory", Table: "events", Operation: op}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, change("INSERT")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	c, err := q.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if c.Operation != "INSERT" {
		t.Errorf("expected INSERT, got %v", c.Operation)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_FullQueueCoalesces(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, change("INSERT")) || !q.Enqueue(ctx, change("UPDATE")) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue(ctx, change("DELETE")) {
		t.Error("expected enqueue on a full queue to be rejected")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_Drain(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.Enqueue(ctx, change("INSERT"))
	}
	if _, err := q.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	drained := q.Drain()
	if len(drained) != 4 {
		t.Errorf("expected 4 drained changes, got %d", len(drained))
	}
	if len(q.Drain()) != 0 {
		t.Error("expected empty drain on an empty queue")
	}
}

func TestInMemoryQueue_NextHonoursContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, change("INSERT"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, change("UPDATE")) {
		t.Error("expected enqueue after close to fail")
	}

	if _, err := q.Next(ctx); err != nil {
		t.Errorf("expected queued change to survive close, got %v", err)
	}
	if _, err := q.Next(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if d := q.Drain(); len(d) != 0 {
		t.Errorf("expected empty drain after close, got %d", len(d))
	}
}

func TestInMemoryQueue_CancelledContextRejected(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, change("INSERT")) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
