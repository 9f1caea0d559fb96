// Package repository translates between remote event rows and the domain model
// and issues list, create and subscribe calls against a remote event store.
package repository

import (
	"context"
	"time"

	"github.com/okian/nextup/internal/domain/model"
)

// Row is the wire shape of one row of the events table.
type Row struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Date                string    `json:"date"`
	Time                string    `json:"time"`
	Location            string    `json:"location"`
	Poster              *string   `json:"poster"`
	OrganizerID         string    `json:"organizer_id"`
	OrganizerName       string    `json:"organizer_name"`
	OrganizerType       string    `json:"organizer_type"`
	Category            string    `json:"category"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	RegistrationOpen    bool      `json:"registration_open"`
	RegistrationLink    *string   `json:"registration_link"`
	Certificate         *string   `json:"certificate"`
	CreatedAt           time.Time `json:"created_at"`
}

// Listener is an open change-notification channel.
type Listener interface {
	Close() error
}

// Store is the query surface of a remote event store.
type Store interface {
	// SelectEvents returns every row ordered by created_at descending.
	SelectEvents(ctx context.Context) ([]Row, error)

	// InsertEvent inserts one row and returns it as stored, with id and
	// created_at assigned by the store.
	InsertEvent(ctx context.Context, row Row) (Row, error)

	// Listen delivers a Change for every insert, update or delete on the
	// events table until the returned Listener is closed.
	Listen(ctx context.Context, onChange func(model.Change)) (Listener, error)
}
