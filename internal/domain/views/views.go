// Package views derives read models from an event snapshot. Every function is
// pure: inputs are never mutated and results never alias a caller's slice in
// a way that lets one write through to the other.
package views

import (
	"strings"
	"time"

	"github.com/okian/nextup/internal/domain/model"
)

// All is the sentinel that lifts a category or organizer constraint.
const All = "all"

// Criteria narrows a snapshot. Zero value matches everything.
type Criteria struct {
	SearchText    string
	Category      string
	OrganizerType string
}

// IsZero reports whether c imposes no constraint.
func (c Criteria) IsZero() bool {
	return c.SearchText == "" && unconstrained(c.Category) && unconstrained(c.OrganizerType)
}

func unconstrained(v string) bool {
	return v == "" || v == All
}

// Stats summarizes a snapshot.
type Stats struct {
	TotalEvents        int `json:"totalEvents"`
	TotalRegistrations int `json:"totalRegistrations"`
	UniqueCategories   int `json:"uniqueCategories"`
	UniqueOrganizers   int `json:"uniqueOrganizers"`
}

// Filter returns the events matching every active constraint, in snapshot order.
// Search text is a plain case-insensitive substring of title, description or
// organizer name; surrounding spaces are part of it.
func Filter(events []model.Event, c Criteria) []model.Event {
	needle := strings.ToLower(c.SearchText)
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if needle != "" && !matchesText(e, needle) {
			continue
		}
		if !unconstrained(c.Category) && string(e.Category) != c.Category {
			continue
		}
		if !unconstrained(c.OrganizerType) && string(e.OrganizerType) != c.OrganizerType {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesText(e model.Event, needle string) bool {
	return strings.Contains(strings.ToLower(e.Title), needle) ||
		strings.Contains(strings.ToLower(e.Description), needle) ||
		strings.Contains(strings.ToLower(e.OrganizerName), needle)
}

// PartitionByDate splits events into those on or after ref's calendar date and
// the rest. Order within each half follows the input.
func PartitionByDate(events []model.Event, ref time.Time) (upcoming, past []model.Event) {
	today := model.CivilDate(ref)
	upcoming = make([]model.Event, 0, len(events))
	past = make([]model.Event, 0)
	for _, e := range events {
		if !model.CivilDate(e.Date).Before(today) {
			upcoming = append(upcoming, e)
			continue
		}
		past = append(past, e)
	}
	return upcoming, past
}

// CategoryCounts counts events per category over the whole input.
func CategoryCounts(events []model.Event) map[model.Category]int {
	counts := make(map[model.Category]int)
	for _, e := range events {
		counts[e.Category]++
	}
	return counts
}

// AggregateStats computes totals over events.
func AggregateStats(events []model.Event) Stats {
	categories := make(map[model.Category]struct{})
	organizers := make(map[string]struct{})
	s := Stats{TotalEvents: len(events)}
	for _, e := range events {
		s.TotalRegistrations += e.CurrentParticipants
		categories[e.Category] = struct{}{}
		organizers[e.OrganizerName] = struct{}{}
	}
	s.UniqueCategories = len(categories)
	s.UniqueOrganizers = len(organizers)
	return s
}
