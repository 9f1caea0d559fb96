// Package postgres is the Postgres-backed remote event store. Change
// notifications come from a trigger that calls pg_notify on every write.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/nextup/internal/adapters/repository"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/logger"
)

// Channel is the LISTEN/NOTIFY channel written by the events trigger.
const Channel = "events_changes"

const (
	source            = "postgres"
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Store implements repository.Store over a pgx pool.
type Store struct {
	pool       *pgxpool.Pool
	log        logger.Logger
	retryDelay time.Duration
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger overrides the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRetryDelay sets the first backoff step used when the LISTEN connection drops.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// New creates a Store. The pool is owned by the caller.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("postgres")
	}
	return s
}

const columns = `id, title, description, date, time, location, poster,
	organizer_id, organizer_name, organizer_type, category,
	max_participants, current_participants, registration_open,
	registration_link, certificate, created_at`

// SelectEvents returns every row, newest first.
func (s *Store) SelectEvents(ctx context.Context) ([]repository.Row, error) {
	const query = `
SELECT ` + columns + `
FROM events
ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, storeError("list", fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var out []repository.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, storeError("list", fmt.Errorf("scan event: %w", err))
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, storeError("list", fmt.Errorf("iterate events: %w", rows.Err()))
	}
	return out, nil
}

// InsertEvent inserts row and returns it as stored. Id, created_at and the
// column defaults come from the database.
func (s *Store) InsertEvent(ctx context.Context, row repository.Row) (repository.Row, error) {
	const stmt = `
INSERT INTO events (
	title, description, date, time, location, poster,
	organizer_id, organizer_name, organizer_type, category,
	max_participants, current_participants, registration_open,
	registration_link, certificate
)
VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + columns
	out, err := scanRow(s.pool.QueryRow(ctx, stmt,
		row.Title, row.Description, row.Date, row.Time, row.Location, row.Poster,
		row.OrganizerID, row.OrganizerName, row.OrganizerType, row.Category,
		row.MaxParticipants, row.CurrentParticipants, row.RegistrationOpen,
		row.RegistrationLink, row.Certificate,
	))
	if err != nil {
		return repository.Row{}, storeError("create", fmt.Errorf("insert event: %w", err))
	}
	return out, nil
}

func scanRow(r pgx.Row) (repository.Row, error) {
	var (
		row  repository.Row
		date time.Time
	)
	err := r.Scan(
		&row.ID, &row.Title, &row.Description, &date, &row.Time, &row.Location, &row.Poster,
		&row.OrganizerID, &row.OrganizerName, &row.OrganizerType, &row.Category,
		&row.MaxParticipants, &row.CurrentParticipants, &row.RegistrationOpen,
		&row.RegistrationLink, &row.Certificate, &row.CreatedAt,
	)
	if err != nil {
		return repository.Row{}, err
	}
	row.Date = date.Format(model.DateLayout)
	return row, nil
}

// storeError keeps the server's own message and SQLSTATE for display.
func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &repository.RemoteError{Op: op, Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}
	return err
}

// Listen holds a dedicated pool connection in LISTEN mode. When the
// connection drops it reconnects with backoff and reports a RESYNC change so
// subscribers re-list whatever they missed.
func (s *Store) Listen(ctx context.Context, onChange func(model.Change)) (repository.Listener, error) {
	conn, err := s.listenConn(ctx)
	if err != nil {
		return nil, storeError("subscribe", err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	l := &listener{cancel: cancel, done: make(chan struct{})}
	go s.loop(lctx, conn, onChange, l.done)
	return l, nil
}

func (s *Store) listenConn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}
	return conn, nil
}

func (s *Store) loop(ctx context.Context, conn *pgxpool.Conn, onChange func(model.Change), done chan<- struct{}) {
	defer close(done)
	delay := s.retryDelay
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err == nil {
			delay = s.retryDelay
			onChange(model.Change{Source: source, Table: "events", Operation: n.Payload, ReceivedAt: time.Now().UTC()})
			continue
		}

		// Cancelling WaitForNotification closes the connection, so Release
		// hands a dead conn back and the pool discards it.
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn(ctx, "listen connection lost", logger.Error(err), logger.Duration("retry_in", delay))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			conn, err = s.listenConn(ctx)
			if err == nil {
				break
			}
			delay = min(delay*2, maxRetryDelay)
			s.log.Warn(ctx, "listen reconnect failed", logger.Error(err), logger.Duration("retry_in", delay))
		}
		s.log.Info(ctx, "listen connection restored")
		onChange(model.Change{Source: source, Table: "events", Operation: "RESYNC", ReceivedAt: time.Now().UTC()})
	}
}

type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops the loop and waits for the connection to be released.
func (l *listener) Close() error {
	l.once.Do(func() {
		l.cancel()
		<-l.done
	})
	return nil
}
