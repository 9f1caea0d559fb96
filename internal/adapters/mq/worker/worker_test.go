package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/nextup/internal/adapters/mq/queue"
	worker "github.com/okian/nextup/internal/adapters/mq/worker"
	model "github.com/okian/nextup/internal/domain/model"
	logging "github.com/okian/nextup/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type countingRefresher struct {
	calls    atomic.Int64
	err      error
	block    chan struct{}
	started  chan struct{}
	mu       sync.Mutex
	deadline []bool
}

func newCountingRefresher() *countingRefresher {
	return &countingRefresher{started: make(chan struct{}, 16)}
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	_, hasDeadline := ctx.Deadline()
	r.mu.Lock()
	r.deadline = append(r.deadline, hasDeadline)
	r.mu.Unlock()
	r.started <- struct{}{}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.err
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func change() model.Change {
	return model.Change{Source: "memory", Table: "events", Operation: "INSERT"}
}

func TestRefreshWorker(t *testing.T) {
	if err := logging.Init(); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given a refresh worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		r := newCountingRefresher()
		w := worker.NewRefreshWorker(q, r, worker.WithName("test-worker"), worker.WithRefreshTimeout(time.Second))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When a burst of changes is queued before the worker runs", func() {
			for i := 0; i < 5; i++ {
				q.Enqueue(ctx, change())
			}
			go w.Run(ctx)

			convey.Convey("Then the burst causes a single refresh", func() {
				convey.So(waitFor(func() bool { return r.calls.Load() == 1 }), convey.ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				convey.So(r.calls.Load(), convey.ShouldEqual, 1)
				convey.So(q.Len(), convey.ShouldEqual, 0)
			})

			convey.Convey("And every refresh carries a deadline", func() {
				convey.So(waitFor(func() bool { return r.calls.Load() == 1 }), convey.ShouldBeTrue)
				r.mu.Lock()
				defer r.mu.Unlock()
				convey.So(r.deadline[0], convey.ShouldBeTrue)
			})
		})

		convey.Convey("When changes arrive one at a time", func() {
			go w.Run(ctx)
			q.Enqueue(ctx, change())
			<-r.started
			q.Enqueue(ctx, change())
			<-r.started

			convey.Convey("Then each one is refreshed", func() {
				convey.So(r.calls.Load(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a refresh fails", func() {
			r.err = errors.New("remote down")
			go w.Run(ctx)
			q.Enqueue(ctx, change())
			<-r.started
			q.Enqueue(ctx, change())
			<-r.started

			convey.Convey("Then the worker keeps going", func() {
				convey.So(r.calls.Load(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(2 * time.Second):
					convey.So("worker did not exit", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the queue is closed", func() {
			go w.Run(ctx)
			_ = q.Close()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(2 * time.Second):
					convey.So("worker did not exit", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	if err := logging.Init(); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given a worker pool", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		r := newCountingRefresher()

		convey.Convey("When created with a non-positive size", func() {
			p := worker.NewPool(0, q, r)

			convey.Convey("Then it runs one worker", func() {
				convey.So(p.Size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When shut down during a blocked refresh", func() {
			r.block = make(chan struct{})
			p := worker.NewPool(2, q, r)
			p.Start(context.Background())
			q.Enqueue(context.Background(), change())
			<-r.started

			err := p.Shutdown(context.Background())

			convey.Convey("Then the refresh is cancelled and workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shut down before start", func() {
			p := worker.NewPool(1, q, r)

			convey.Convey("Then nothing happens", func() {
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}
