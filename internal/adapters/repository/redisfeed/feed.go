// Package redisfeed fans change notifications out over a redis channel. It
// wraps a repository.Store so that every successful insert is published and
// Listen merges the channel with the store's own feed.
package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/nextup/internal/adapters/repository"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/logger"
	"github.com/okian/nextup/pkg/metrics"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "nextup:events:changes"

const source = "redis"

// Message is the JSON payload published for every write.
type Message struct {
	Table     string    `json:"table"`
	Operation string    `json:"operation"`
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
}

// Feed decorates a Store with redis pub/sub notifications.
type Feed struct {
	repository.Store
	client    *redis.Client
	channel   string
	log       logger.Logger
	subscribe func(ctx context.Context, onChange func(model.Change)) (repository.Listener, error)
}

// Option applies a configuration option to the Feed.
type Option func(*Feed)

// WithChannel overrides the pub/sub channel name.
func WithChannel(channel string) Option {
	return func(f *Feed) {
		if channel != "" {
			f.channel = channel
		}
	}
}

// WithLogger overrides the feed logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}

// New wraps store. The client is owned by the caller.
func New(store repository.Store, client *redis.Client, opts ...Option) *Feed {
	f := &Feed{Store: store, client: client, channel: DefaultChannel}
	f.subscribe = f.listenChannel
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Named("redisfeed")
	}
	return f
}

// NewClient parses a redis URL and checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// InsertEvent inserts through the wrapped store and then publishes. A failed
// publish is logged; the row is already stored so the insert still succeeds.
func (f *Feed) InsertEvent(ctx context.Context, row repository.Row) (repository.Row, error) {
	out, err := f.Store.InsertEvent(ctx, row)
	if err != nil {
		return out, err
	}
	if err := f.Publish(ctx, Message{Table: "events", Operation: "INSERT", ID: out.ID, At: time.Now().UTC()}); err != nil {
		metrics.RecordErrorByComponent("redisfeed", "publish_failed")
		f.log.Warn(ctx, "publish change failed", logger.String("event_id", out.ID), logger.Error(err))
	}
	return out, nil
}

// Publish sends m on the channel.
func (f *Feed) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", f.channel, err)
	}
	return nil
}

// Listen opens the wrapped store's feed and the redis channel. Writes that
// bypass this process only reach the store feed; inserts made through any
// Feed sharing the channel arrive on both, which the refresh queue folds.
func (f *Feed) Listen(ctx context.Context, onChange func(model.Change)) (repository.Listener, error) {
	storeL, err := f.Store.Listen(ctx, onChange)
	if err != nil {
		return nil, err
	}
	chanL, err := f.subscribe(ctx, onChange)
	if err != nil {
		_ = storeL.Close()
		return nil, err
	}
	return &fanIn{listeners: []repository.Listener{storeL, chanL}}, nil
}

// listenChannel subscribes to the channel and confirms the subscription
// before returning.
func (f *Feed) listenChannel(ctx context.Context, onChange func(model.Change)) (repository.Listener, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	l := &listener{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		f.consume(ctx, ps.Channel(), onChange)
	}()
	return l, nil
}

// consume turns messages into changes until ch is closed. Malformed payloads
// still count as a change since only the signal matters.
func (f *Feed) consume(ctx context.Context, ch <-chan *redis.Message, onChange func(model.Change)) {
	for msg := range ch {
		c := model.Change{Source: source, Table: "events", Operation: "UNKNOWN", ReceivedAt: time.Now().UTC()}
		var m Message
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			f.log.Debug(ctx, "undecodable change payload", logger.String("channel", msg.Channel), logger.Error(err))
		} else {
			c.Table = m.Table
			c.Operation = m.Operation
		}
		onChange(c)
	}
}

type listener struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

// Close unsubscribes and waits for the consumer to exit.
func (l *listener) Close() error {
	l.once.Do(func() {
		l.err = l.ps.Close()
		<-l.done
	})
	return l.err
}

// fanIn closes every merged listener once and joins their errors.
type fanIn struct {
	listeners []repository.Listener
	once      sync.Once
	err       error
}

func (f *fanIn) Close() error {
	f.once.Do(func() {
		errs := make([]error, 0, len(f.listeners))
		for _, l := range f.listeners {
			errs = append(errs, l.Close())
		}
		f.err = errors.Join(errs...)
	})
	return f.err
}
