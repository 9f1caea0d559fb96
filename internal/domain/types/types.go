// Package types contains the JSON read models exchanged with presentation layers.
package types

import (
	"time"

	"github.com/okian/nextup/internal/domain/model"
)

// Event is the camelCase JSON form of model.Event.
type Event struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	Poster              string  `json:"poster"`
	Date                string  `json:"date"`
	Time                string  `json:"time"`
	Location            string  `json:"location"`
	OrganizerID         string  `json:"organizerId"`
	OrganizerName       string  `json:"organizerName"`
	OrganizerType       string  `json:"organizerType"`
	Category            string  `json:"category"`
	MaxParticipants     int     `json:"maxParticipants"`
	CurrentParticipants int     `json:"currentParticipants"`
	RegistrationOpen    bool    `json:"registrationOpen"`
	RegistrationLink    *string `json:"registrationLink,omitempty"`
	Certificate         *string `json:"certificate,omitempty"`
	CreatedAt           string  `json:"createdAt"`
}

// EventDetail adds the capacity figures shown on an event page.
type EventDetail struct {
	Event
	SpotsLeft        int    `json:"spotsLeft"`
	Full             bool   `json:"full"`
	AlmostFull       bool   `json:"almostFull"`
	CanRegister      bool   `json:"canRegister"`
	RegistrationMode string `json:"registrationMode"`
}

// EventsResponse is the presentation contract: the snapshot plus sync state.
type EventsResponse struct {
	Events   []Event `json:"events"`
	Loading  bool    `json:"loading"`
	Error    *string `json:"error"`
	Total    int     `json:"total"`
	Filtered int     `json:"filtered"`
}

// CategoryCount is one row of the category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CreateEventRequest is the body of POST /events.
type CreateEventRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Poster           *string `json:"poster,omitempty"`
	Date             string  `json:"date"`
	Time             string  `json:"time"`
	Location         string  `json:"location"`
	OrganizerID      string  `json:"organizerId"`
	OrganizerName    string  `json:"organizerName"`
	OrganizerType    string  `json:"organizerType"`
	Category         string  `json:"category"`
	MaxParticipants  int     `json:"maxParticipants"`
	RegistrationLink *string `json:"registrationLink,omitempty"`
	Certificate      *string `json:"certificate,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// FromEvent converts a snapshot event for the wire.
func FromEvent(e model.Event) Event {
	return Event{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		Poster:              e.Poster,
		Date:                e.DateString(),
		Time:                e.Time,
		Location:            e.Location,
		OrganizerID:         e.OrganizerID,
		OrganizerName:       e.OrganizerName,
		OrganizerType:       string(e.OrganizerType),
		Category:            string(e.Category),
		MaxParticipants:     e.MaxParticipants,
		CurrentParticipants: e.CurrentParticipants,
		RegistrationOpen:    e.RegistrationOpen,
		RegistrationLink:    e.RegistrationLink,
		Certificate:         e.Certificate,
		CreatedAt:           e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// FromEvents converts a slice, never returning nil.
func FromEvents(events []model.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

// DetailFromEvent adds capacity figures.
func DetailFromEvent(e model.Event) EventDetail {
	return EventDetail{
		Event:            FromEvent(e),
		SpotsLeft:        e.SpotsLeft(),
		Full:             e.IsFull(),
		AlmostFull:       e.AlmostFull(),
		CanRegister:      e.CanRegister(),
		RegistrationMode: string(e.RegistrationMode()),
	}
}

// ToDraft converts the request. A malformed date is reported as a
// *model.ValidationError together with every other failing field.
func (r CreateEventRequest) ToDraft() (model.Draft, error) {
	d := model.Draft{
		Title:            r.Title,
		Description:      r.Description,
		Poster:           model.OptionalPtr(r.Poster),
		Time:             r.Time,
		Location:         r.Location,
		OrganizerID:      r.OrganizerID,
		OrganizerName:    r.OrganizerName,
		OrganizerType:    model.OrganizerType(r.OrganizerType),
		Category:         model.Category(r.Category),
		MaxParticipants:  r.MaxParticipants,
		RegistrationLink: model.OptionalPtr(r.RegistrationLink),
		Certificate:      model.OptionalPtr(r.Certificate),
	}

	date, dateErr := model.ParseDate(r.Date)
	if dateErr == nil {
		d.Date = date
	}

	err := d.Validate()
	if dateErr == nil {
		return d, err
	}

	verr, ok := err.(*model.ValidationError)
	if !ok {
		verr = &model.ValidationError{Fields: map[string]string{}}
	}
	verr.Fields["date"] = "must be a YYYY-MM-DD calendar date"
	return d, verr
}
