// Package calendar serves the upcoming events as an iCalendar feed so
// students can subscribe from their own calendar apps.
package calendar

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/emersion/go-ical"
	"github.com/okian/nextup/internal/adapters/http/api"
	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/internal/domain/views"
	"github.com/okian/nextup/pkg/logger"
)

// ProductID identifies the feed producer in PRODID.
const ProductID = "-//NextUp//Event Directory//EN"

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock used to pick upcoming events and stamp entries.
func WithClock(c clock.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithUIDDomain sets the host part of each event UID.
func WithUIDDomain(domain string) Option {
	return func(h *Handler) {
		if domain != "" {
			h.uidDomain = domain
		}
	}
}

// Handler renders the snapshot as text/calendar.
type Handler struct {
	deps      api.Snapshotter
	clock     clock.Clock
	uidDomain string
	log       logger.Logger
}

// NewHandler creates a feed handler over deps.
func NewHandler(deps api.Snapshotter, opts ...Option) *Handler {
	h := &Handler{deps: deps, clock: clock.NewSystem(), uidDomain: "nextup.local"}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logger.Named("calendar")
	return h
}

// Register attaches GET /events.ics to mux.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /events.ics", api.MetricsMiddleware(h.HandleFeed, "events_ics"))
}

// HandleFeed handles GET /events.ics. It accepts the same filters as
// GET /events and lists only upcoming events.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	criteria, err := api.ParseCriteria(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	now := h.clock.Now()
	upcoming, _ := views.PartitionByDate(views.Filter(h.deps.State().Events, criteria), now)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(h.Calendar(upcoming, now)); err != nil {
		h.log.Error(r.Context(), "encode calendar feed", logger.Error(err), logger.Int("events", len(upcoming)))
		http.Error(w, "calendar encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="nextup.ics"`)
	_, _ = w.Write(buf.Bytes())
}

// Calendar builds a VCALENDAR with one all-day VEVENT per event.
func (h *Handler) Calendar(events []model.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for _, e := range events {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, e.ID+"@"+h.uidDomain)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		ev.Props.SetDate(ical.PropDateTimeStart, e.Date)
		ev.Props.SetText(ical.PropSummary, e.Title)
		ev.Props.SetText(ical.PropDescription, description(e))
		if e.Location != "" {
			ev.Props.SetText(ical.PropLocation, e.Location)
		}
		ev.Props.SetText(ical.PropCategories, string(e.Category))
		if e.RegistrationLink != nil {
			if u, err := url.Parse(*e.RegistrationLink); err == nil {
				ev.Props.SetURI(ical.PropURL, u)
			}
		}
		cal.Children = append(cal.Children, ev.Component)
	}
	return cal
}

func description(e model.Event) string {
	d := e.Description
	if e.Time != "" {
		d = e.Time + " | " + d
	}
	if e.OrganizerName != "" {
		d += "\nOrganized by " + e.OrganizerName
	}
	return d
}
