package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/pkg/logger"
	"github.com/okian/nextup/pkg/metrics"
)

// Repository issues list, create and subscribe against a Store.
type Repository struct {
	store Store
	log   logger.Logger
}

// New builds a Repository over store.
func New(store Store, opts ...Option) *Repository {
	r := &Repository{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Named("repository")
	}
	return r
}

// List returns every event, newest first. Store failures and rows that do not
// fit the model are reported as *RemoteError. Nothing is retried.
func (r *Repository) List(ctx context.Context) ([]model.Event, error) {
	start := time.Now()
	rows, err := r.store.SelectEvents(ctx)
	metrics.RecordStoreLatency("select", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "list_failed")
		return nil, remoteError("list", err)
	}

	events := make([]model.Event, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		e, err := ToEvent(row)
		if err != nil {
			metrics.RecordErrorByComponent("repository", "integrity")
			r.log.Warn(ctx, "rejecting event list", logger.String("event_id", row.ID), logger.Error(err))
			return nil, remoteError("list", err)
		}
		if _, dup := seen[e.ID]; dup {
			metrics.RecordErrorByComponent("repository", "integrity")
			return nil, remoteError("list", fmt.Errorf("%w: duplicate id %q", ErrIntegrity, e.ID))
		}
		seen[e.ID] = struct{}{}
		events = append(events, e)
	}
	return events, nil
}

// Create inserts draft with a zero participant counter and open registration
// and returns the stored event.
func (r *Repository) Create(ctx context.Context, draft model.Draft) (model.Event, error) {
	start := time.Now()
	row, err := r.store.InsertEvent(ctx, RowFromDraft(draft))
	metrics.RecordStoreLatency("insert", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "create_failed")
		return model.Event{}, remoteError("create", err)
	}
	e, err := ToEvent(row)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "integrity")
		return model.Event{}, remoteError("create", err)
	}
	return e, nil
}

// Subscribe opens the change feed. onChange is called with no payload for
// every remote change; callers re-list instead of merging.
func (r *Repository) Subscribe(ctx context.Context, onChange func()) (*Subscription, error) {
	l, err := r.store.Listen(ctx, func(c model.Change) {
		metrics.RecordChangeNotification(c.Source)
		r.log.Debug(ctx, "change notification",
			logger.String("source", c.Source),
			logger.String("operation", c.Operation),
		)
		onChange()
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "subscribe_failed")
		return nil, remoteError("subscribe", err)
	}
	return &Subscription{listener: l}, nil
}

// Subscription is an open change feed. Close is idempotent.
type Subscription struct {
	listener Listener
	once     sync.Once
	err      error
}

// Close terminates the feed. Only the first call reaches the store.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.err = s.listener.Close()
	})
	return s.err
}

// ToEvent translates a row. Enumerations and the date must be valid; a
// missing poster becomes model.FallbackPoster and blank optionals become nil.
func ToEvent(row Row) (model.Event, error) {
	category, err := model.ParseCategory(row.Category)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: event %s: %w", ErrIntegrity, row.ID, err)
	}
	organizerType, err := model.ParseOrganizerType(row.OrganizerType)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: event %s: %w", ErrIntegrity, row.ID, err)
	}
	date, err := model.ParseDate(row.Date)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: event %s: date %q", ErrIntegrity, row.ID, row.Date)
	}

	poster := model.FallbackPoster
	if row.Poster != nil && strings.TrimSpace(*row.Poster) != "" {
		poster = *row.Poster
	}

	return model.Event{
		ID:                  row.ID,
		Title:               row.Title,
		Description:         row.Description,
		Poster:              poster,
		Date:                date,
		Time:                row.Time,
		Location:            row.Location,
		OrganizerID:         row.OrganizerID,
		OrganizerName:       row.OrganizerName,
		OrganizerType:       organizerType,
		Category:            category,
		MaxParticipants:     row.MaxParticipants,
		CurrentParticipants: row.CurrentParticipants,
		RegistrationOpen:    row.RegistrationOpen,
		RegistrationLink:    model.OptionalPtr(row.RegistrationLink),
		Certificate:         model.OptionalPtr(row.Certificate),
		CreatedAt:           row.CreatedAt,
	}, nil
}

// RowFromDraft builds the insert row. Id and created_at are left to the store.
func RowFromDraft(d model.Draft) Row {
	return Row{
		Title:               d.Title,
		Description:         d.Description,
		Date:                d.Date.Format(model.DateLayout),
		Time:                d.Time,
		Location:            d.Location,
		Poster:              model.OptionalPtr(d.Poster),
		OrganizerID:         d.OrganizerID,
		OrganizerName:       d.OrganizerName,
		OrganizerType:       string(d.OrganizerType),
		Category:            string(d.Category),
		MaxParticipants:     d.MaxParticipants,
		CurrentParticipants: 0,
		RegistrationOpen:    true,
		RegistrationLink:    model.OptionalPtr(d.RegistrationLink),
		Certificate:         model.OptionalPtr(d.Certificate),
	}
}
