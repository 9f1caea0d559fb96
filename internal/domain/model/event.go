// Package model contains the event directory domain types passed between layers.
package model

import (
	"strings"
	"time"
)

// FallbackPoster is shown for events submitted without a poster.
const FallbackPoster = "https://images.unsplash.com/photo-1517180102446-f3ece451e9d8?w=400&h=300&fit=crop&crop=center"

// AlmostFullThreshold is the number of remaining spots at or below which an
// open event is flagged as almost full.
const AlmostFullThreshold = 10

// DateLayout is the wire layout of Event.Date.
const DateLayout = "2006-01-02"

// OrganizerType is the kind of organizer hosting an event.
type OrganizerType string

// Organizer types.
const (
	OrganizerCollege OrganizerType = "college"
	OrganizerCompany OrganizerType = "company"
)

// OrganizerTypes lists every accepted organizer type.
var OrganizerTypes = []OrganizerType{OrganizerCollege, OrganizerCompany} //nolint:gochecknoglobals // closed enumeration

// ParseOrganizerType accepts only the closed enumeration.
func ParseOrganizerType(s string) (OrganizerType, error) {
	for _, t := range OrganizerTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &EnumError{Kind: ErrInvalidOrganizerType, Value: s}
}

// Category classifies an event.
type Category string

// Categories.
const (
	CategoryWorkshop          Category = "workshop"
	CategoryHackathon         Category = "hackathon"
	CategoryMedicalCamp       Category = "medical-camp"
	CategorySeminar           Category = "seminar"
	CategoryTechnical         Category = "technical"
	CategoryNonTechnical      Category = "non-technical"
	CategoryPaperPresentation Category = "paper-presentation"
)

// Categories lists every accepted category in display order.
var Categories = []Category{ //nolint:gochecknoglobals // closed enumeration
	CategoryWorkshop,
	CategoryHackathon,
	CategoryMedicalCamp,
	CategorySeminar,
	CategoryTechnical,
	CategoryNonTechnical,
	CategoryPaperPresentation,
}

// ParseCategory accepts only the closed enumeration.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &EnumError{Kind: ErrInvalidCategory, Value: s}
}

// Event is a single directory entry as held in a snapshot. Values are never
// mutated once they are part of a snapshot.
type Event struct {
	ID                  string
	Title               string
	Description         string
	Poster              string
	Date                time.Time // calendar date, midnight UTC
	Time                string    // local time of day, free form
	Location            string
	OrganizerID         string
	OrganizerName       string
	OrganizerType       OrganizerType
	Category            Category
	MaxParticipants     int
	CurrentParticipants int
	RegistrationOpen    bool
	RegistrationLink    *string
	Certificate         *string
	CreatedAt           time.Time
}

// RegistrationMode says where a registration intent is handled.
type RegistrationMode string

// Registration modes.
const (
	RegistrationInApp    RegistrationMode = "in_app"
	RegistrationExternal RegistrationMode = "external"
)

// SpotsLeft never goes below zero even when the counter overshoots.
func (e Event) SpotsLeft() int {
	left := e.MaxParticipants - e.CurrentParticipants
	if left < 0 {
		return 0
	}
	return left
}

// IsFull reports whether the counter reached capacity.
func (e Event) IsFull() bool {
	return e.CurrentParticipants >= e.MaxParticipants
}

// AlmostFull reports an open-capacity event with few spots left.
func (e Event) AlmostFull() bool {
	return !e.IsFull() && e.SpotsLeft() <= AlmostFullThreshold
}

// CanRegister reports whether a registration intent may be offered.
func (e Event) CanRegister() bool {
	return e.RegistrationOpen && !e.IsFull()
}

// RegistrationMode is external when a registration link is present.
func (e Event) RegistrationMode() RegistrationMode {
	if e.RegistrationLink != nil {
		return RegistrationExternal
	}
	return RegistrationInApp
}

// DateString formats Date using DateLayout.
func (e Event) DateString() string {
	return e.Date.Format(DateLayout)
}

// ParseDate parses a calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// CivilDate truncates t to midnight UTC of its calendar date in t's location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Optional returns nil for blank strings so absent values never become "".
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// OptionalPtr is Optional for values that may already be absent.
func OptionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return Optional(*s)
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Change is a notification that something in the events table changed.
// The changed row itself is never carried.
type Change struct {
	Source     string // "memory", "postgres", "redis"
	Table      string
	Operation  string // INSERT, UPDATE, DELETE
	ReceivedAt time.Time
}
