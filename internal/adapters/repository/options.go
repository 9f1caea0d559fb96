package repository

import (
	"time"

	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/pkg/logger"
)

// Option applies a configuration option to the Repository.
type Option func(*Repository)

// WithLogger overrides the repository logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock that stamps created_at.
func WithClock(c clock.Clock) MemoryOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator replaces uuid ids, mostly for tests.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLatency delays every query, to exercise loading state against a local store.
func WithLatency(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.latency = d
		}
	}
}
