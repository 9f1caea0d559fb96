// Package service keeps a local snapshot of the event collection consistent
// with the remote store and exposes it, with its sync state, to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	eventqueue "github.com/okian/nextup/internal/adapters/mq/queue"
	workerpool "github.com/okian/nextup/internal/adapters/mq/worker"
	repository "github.com/okian/nextup/internal/adapters/repository"
	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/internal/domain/dedupe"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/logger"
	"github.com/okian/nextup/pkg/metrics"
)

// Status is the synchronization state.
type Status string

// Statuses. A service moves Idle -> Loading -> Ready or Failed and re-enters
// Loading on every change notification.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// Repository is what the service needs from the event repository.
type Repository interface {
	List(ctx context.Context) ([]model.Event, error)
	Create(ctx context.Context, draft model.Draft) (model.Event, error)
	Subscribe(ctx context.Context, onChange func()) (*repository.Subscription, error)
}

// State is a consistent read of the service. Events is a private copy.
type State struct {
	Events        []model.Event
	Loading       bool
	Error         *string
	Status        Status
	LastRefreshed time.Time
}

// Service is the event synchronization service.
type Service struct {
	repo    Repository
	deduper dedupe.Deduper

	mu sync.RWMutex

	// Snapshot and session error. The snapshot slice is replaced, never
	// written in place.
	snapshot      []model.Event
	lastErr       *string
	lastFailed    bool
	lastRefreshed time.Time

	// issued is the sequence of the newest list call; applied is the
	// sequence of the newest completion that was applied.
	issued  uint64
	applied uint64

	// Lifecycle
	started bool
	active  bool
	cancel  context.CancelFunc
	sub     *repository.Subscription
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool

	// Counters for /stats
	refreshOK     uint64
	refreshFailed uint64
	discarded     uint64
	creates       uint64

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	refreshTimeout time.Duration
	clock          clock.Clock

	logger logger.Logger
}

// New constructs a Service over repo.
func New(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		workerCount:    1,
		queueSize:      64,
		dedupeSize:     10000,
		refreshTimeout: 10 * time.Second,
		clock:          clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("sync")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	metrics.UpdateSyncStatus(string(StatusIdle))
	return s
}

// Start subscribes to the change feed, starts the refresh workers and runs
// the initial list. The subscription is opened first so no change between
// the initial list and the subscription can be missed.
//
// A failed initial list leaves the service in StatusFailed and Start still
// returns nil; the next change notification retries. A failed subscribe
// releases everything and is returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		active := s.active
		s.mu.Unlock()
		if !active {
			return ErrStopped
		}
		return nil
	}

	s.logger.Info(ctx, "starting event sync service")

	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.queue = q

	sub, err := s.repo.Subscribe(ctx, s.onChange)
	if err != nil {
		_ = q.Close()
		s.queue = nil
		s.mu.Unlock()
		metrics.RecordErrorByComponent("sync", "subscribe_failed")
		return fmt.Errorf("subscribe to event changes: %w", err)
	}

	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pool := workerpool.NewPool(s.workerCount, q, s, workerpool.WithRefreshTimeout(s.refreshTimeout))
	pool.Start(lifeCtx)

	s.sub = sub
	s.pool = pool
	s.cancel = cancel
	s.started = true
	s.active = true
	s.mu.Unlock()

	s.logger.Info(ctx, "event sync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)

	rctx, rcancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer rcancel()
	if err := s.Refresh(rctx); err != nil && !errors.Is(err, ErrStopped) {
		s.logger.Warn(ctx, "initial event list failed", logger.Error(err))
	}
	return nil
}

// onChange is the subscription callback. It never blocks; when the queue is
// full a refresh is already pending.
func (s *Service) onChange() {
	s.RequestRefresh("subscription")
}

// RequestRefresh schedules an asynchronous re-list. It reports whether the
// service accepted the request; a request folded into an already pending
// refresh counts as accepted.
func (s *Service) RequestRefresh(source string) bool {
	s.mu.RLock()
	q, active := s.queue, s.active
	s.mu.RUnlock()
	if !active || q == nil {
		return false
	}
	c := model.Change{Source: source, Table: "events", Operation: "REFRESH", ReceivedAt: s.clock.Now()}
	if !q.Enqueue(context.Background(), c) {
		return !q.IsClosed()
	}
	return true
}

// Refresh re-lists the store. Completions are applied in issue order: a
// completion older than one already applied, or one arriving after Stop, is
// dropped without touching state and Refresh returns nil. Otherwise the list
// error, if any, is returned after being recorded as the session error.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if !s.active {
		s.mu.Unlock()
		return ErrStopped
	}
	s.issued++
	seq := s.issued
	s.mu.Unlock()
	metrics.UpdateSyncStatus(string(StatusLoading))

	start := time.Now()
	events, err := s.repo.List(ctx)
	latency := float64(time.Since(start).Milliseconds())

	s.mu.Lock()
	defer func() {
		status := s.statusLocked()
		s.mu.Unlock()
		metrics.UpdateSyncStatus(string(status))
	}()

	if !s.active {
		s.discardLocked(ctx, seq, "stopped")
		return nil
	}
	if seq <= s.applied {
		s.discardLocked(ctx, seq, "superseded")
		return nil
	}
	s.applied = seq

	if err != nil {
		msg := errorMessage(err)
		s.lastErr = &msg
		s.lastFailed = true
		s.refreshFailed++
		metrics.RecordRefresh("error", latency)
		metrics.RecordErrorByComponent("sync", "list_failed")
		s.logger.Warn(ctx, "event list failed; keeping previous snapshot",
			logger.Uint64("seq", seq),
			logger.Int("kept", len(s.snapshot)),
			logger.Error(err),
		)
		return err
	}

	s.snapshot = events
	s.lastErr = nil
	s.lastFailed = false
	s.lastRefreshed = s.clock.Now()
	s.refreshOK++
	metrics.RecordRefresh("success", latency)
	metrics.UpdateSnapshotSize(len(events))
	metrics.UpdateLastRefresh(s.lastRefreshed)
	s.logger.Debug(ctx, "snapshot refreshed", logger.Uint64("seq", seq), logger.Int("events", len(events)))
	return nil
}

func (s *Service) discardLocked(ctx context.Context, seq uint64, reason string) {
	s.discarded++
	metrics.RecordStaleDiscard(reason)
	s.logger.Debug(ctx, "discarding stale list response",
		logger.Uint64("seq", seq),
		logger.Uint64("applied", s.applied),
		logger.String("reason", reason),
	)
}

// errorMessage prefers the store's own text for display.
func errorMessage(err error) string {
	var re *repository.RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

// CreateEvent validates draft and inserts it. The snapshot and the session
// error are never touched; the new event shows up with the next refresh.
func (s *Service) CreateEvent(ctx context.Context, draft model.Draft) (model.Event, error) {
	s.mu.RLock()
	stopped := s.started && !s.active
	s.mu.RUnlock()
	if stopped {
		return model.Event{}, ErrStopped
	}

	if err := draft.Validate(); err != nil {
		metrics.RecordCreate("validation", -1)
		return model.Event{}, err
	}

	start := time.Now()
	e, err := s.repo.Create(ctx, draft)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordCreate("remote", latency)
		s.logger.Warn(ctx, "create event failed", logger.Error(err))
		return model.Event{}, err
	}

	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	metrics.RecordCreate("success", latency)
	s.logger.Info(ctx, "event created", logger.String("event_id", e.ID), logger.String("category", string(e.Category)))
	return e, nil
}

// SeenAndRecord atomically checks whether an idempotency key was used and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return seen
}

// Unrecord forgets an idempotency key so a failed create can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of remembered idempotency keys.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// State returns the snapshot and sync state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Events:        slices.Clone(s.snapshot),
		Loading:       s.active && s.issued > s.applied,
		Status:        s.statusLocked(),
		LastRefreshed: s.lastRefreshed,
	}
	if st.Events == nil {
		st.Events = []model.Event{}
	}
	if s.lastErr != nil {
		msg := *s.lastErr
		st.Error = &msg
	}
	return st
}

func (s *Service) statusLocked() Status {
	switch {
	case s.started && !s.active:
		return StatusStopped
	case s.issued == 0:
		return StatusIdle
	case s.issued > s.applied:
		return StatusLoading
	case s.lastFailed:
		return StatusFailed
	default:
		return StatusReady
	}
}

// Stop closes the subscription exactly once, stops the workers and marks the
// service inactive. List responses that complete afterwards are discarded.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started || !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	sub, q, pool, cancel := s.sub, s.queue, s.pool, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping event sync service")

	err := sub.Close()
	if err != nil {
		s.logger.Warn(ctx, "closing subscription failed", logger.Error(err))
	}
	_ = q.Close()
	cancel()
	if perr := pool.Shutdown(ctx); perr != nil {
		err = errors.Join(err, perr)
	}

	metrics.UpdateSyncStatus(string(StatusStopped))
	s.logger.Info(ctx, "event sync service stopped")
	return err
}

// GetStats returns service statistics for the /stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"status":          string(s.statusLocked()),
		"snapshotSize":    len(s.snapshot),
		"refreshes":       s.refreshOK,
		"refreshFailures": s.refreshFailed,
		"staleDiscarded":  s.discarded,
		"creates":         s.creates,
		"workerCount":     s.workerCount,
		"queueCapacity":   s.queueSize,
		"idempotencyKeys": s.deduper.Size(),
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len()
	}
	if !s.lastRefreshed.IsZero() {
		stats["lastRefreshed"] = s.lastRefreshed.Format(time.RFC3339)
	}
	if s.lastErr != nil {
		stats["error"] = *s.lastErr
	}
	return stats
}
