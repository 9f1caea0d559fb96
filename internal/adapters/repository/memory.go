package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/internal/domain/model"
)

const memorySource = "memory"

// MemoryStore is an in-process Store. It assigns uuid ids and clock-stamped
// created_at values and fans every write out to open listeners.
type MemoryStore struct {
	mu        sync.RWMutex
	rows      []Row // insertion order
	listeners map[uint64]func(model.Change)
	nextL     uint64
	closed    bool

	clock   clock.Clock
	newID   func() string
	latency time.Duration
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		listeners: make(map[uint64]func(model.Change)),
		clock:     clock.NewSystemIn(time.UTC),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SelectEvents returns a copy of every row, newest first. Rows sharing a
// created_at keep reverse insertion order.
func (s *MemoryStore) SelectEvents(ctx context.Context) ([]Row, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]Row, 0, len(s.rows))
	for i := len(s.rows) - 1; i >= 0; i-- {
		out = append(out, s.rows[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InsertEvent stores row with a fresh id and created_at.
func (s *MemoryStore) InsertEvent(ctx context.Context, row Row) (Row, error) {
	if err := s.wait(ctx); err != nil {
		return Row{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Row{}, ErrClosed
	}
	row.ID = s.newID()
	row.CreatedAt = s.clock.Now()
	s.rows = append(s.rows, row)
	s.mu.Unlock()

	s.notify("INSERT")
	return row, nil
}

// Put stores row as given, replacing any row with the same id. It stands in
// for writes made by other clients of the remote store.
func (s *MemoryStore) Put(row Row) {
	op := "INSERT"
	s.mu.Lock()
	replaced := false
	for i := range s.rows {
		if s.rows[i].ID == row.ID {
			s.rows[i] = row
			replaced = true
			op = "UPDATE"
			break
		}
	}
	if !replaced {
		s.rows = append(s.rows, row)
	}
	s.mu.Unlock()

	s.notify(op)
}

// Delete removes the row with id, reporting whether it existed.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.notify("DELETE")
	}
	return found
}

// Listen registers onChange until the returned Listener is closed.
func (s *MemoryStore) Listen(_ context.Context, onChange func(model.Change)) (Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.nextL++
	id := s.nextL
	s.listeners[id] = onChange
	return &memoryListener{store: s, id: id}, nil
}

// Listeners returns the number of open listeners.
func (s *MemoryStore) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Close rejects every further call and drops all listeners.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[uint64]func(model.Change))
}

func (s *MemoryStore) notify(op string) {
	s.mu.RLock()
	fns := make([]func(model.Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	c := model.Change{Source: memorySource, Table: "events", Operation: op, ReceivedAt: s.clock.Now()}
	for _, fn := range fns {
		fn(c)
	}
}

type memoryListener struct {
	store *MemoryStore
	id    uint64
}

func (l *memoryListener) Close() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.listeners, l.id)
	return nil
}
