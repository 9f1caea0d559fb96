// Package worker turns queued change notifications into snapshot refreshes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/logger"
	"github.com/okian/nextup/pkg/metrics"
)

const (
	defaultRefreshTimeout = 10 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Refresher re-lists the remote store.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Queue defines how workers receive change notifications.
type Queue interface {
	Next(ctx context.Context) (model.Change, error)
	Drain() []model.Change
}

// RefreshWorker waits for a change, folds every change queued behind it into
// the same refresh, then refreshes once.
type RefreshWorker struct {
	queue          Queue
	refresher      Refresher
	name           string
	refreshTimeout time.Duration

	done chan struct{}

	logger logger.Logger
}

// NewRefreshWorker creates a new worker with configuration options.
func NewRefreshWorker(queue Queue, refresher Refresher, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:          queue,
		refresher:      refresher,
		name:           "worker",
		refreshTimeout: defaultRefreshTimeout,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run loops until ctx is cancelled or the queue is closed and empty.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		c, err := w.queue.Next(ctx)
		if err != nil {
			return
		}
		coalesced := w.queue.Drain()
		if err := w.refresh(ctx, c, len(coalesced)); err != nil && ctx.Err() == nil {
			w.logger.Warn(ctx, "refresh after change failed", logger.Error(err))
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context, trigger model.Change, coalesced int) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.logger.Debug(ctx, "refreshing after change",
		logger.String("source", trigger.Source),
		logger.String("operation", trigger.Operation),
		logger.Int("coalesced", coalesced),
	)

	rctx, cancel := context.WithTimeout(ctx, w.refreshTimeout)
	defer cancel()
	if err := w.refresher.Refresh(rctx); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "refresh_failed")
		return fmt.Errorf("%s refresh: %w", w.name, err)
	}
	return nil
}

// Done is closed once Run has returned.
func (w *RefreshWorker) Done() <-chan struct{} {
	return w.done
}

// Pool runs a fixed set of refresh workers over one queue.
type Pool struct {
	workers []*RefreshWorker
	cancel  context.CancelFunc
	once    sync.Once

	logger logger.Logger
}

// NewPool creates workerCount workers (at least one). Options apply to every
// worker; names are assigned per worker.
func NewPool(workerCount int, queue Queue, refresher Refresher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*RefreshWorker, workerCount),
		logger:  logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option(nil), opts...), WithName("refresh-worker-"+strconv.Itoa(i)))
		p.workers[i] = NewRefreshWorker(queue, refresher, wopts...)
	}
	return p
}

// Start launches every worker. Workers stop when ctx is cancelled or when
// Shutdown is called.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown cancels in-flight refreshes and waits for every worker to exit.
// Only the first call does any work.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			select {
			case <-w.done:
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = errors.Join(err, fmt.Errorf("worker %d: %w", i, shutdownCtx.Err()))
			}
		}
		metrics.UpdateWorkerCount(0)
	})
	return err
}
