// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	repository "github.com/okian/nextup/internal/adapters/repository"
	service "github.com/okian/nextup/internal/app"
	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/internal/domain/dedupe"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/internal/domain/types"
	"github.com/okian/nextup/internal/domain/views"
)

// Snapshotter exposes the synchronized event snapshot.
type Snapshotter interface {
	State() service.State
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper
	Snapshotter

	// CreateEvent validates and inserts a draft.
	CreateEvent(ctx context.Context, draft model.Draft) (model.Event, error)

	// RequestRefresh schedules a re-list. Returns false once stopped.
	RequestRefresh(source string) bool
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used to split upcoming from past events.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	clock clock.Clock

	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	categoriesHandler *CategoriesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{clock: clock.NewSystem()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, statsProvider)
	s.eventsHandler = NewEventsHandler(deps, s.clock)
	s.categoriesHandler = NewCategoriesHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /categories", MetricsMiddleware(s.categoriesHandler.HandleGetCategories, "categories"))
	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))
	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("POST /events/refresh", MetricsMiddleware(s.eventsHandler.HandleRefresh, "events_refresh"))
	mux.HandleFunc("GET /events/upcoming", MetricsMiddleware(s.eventsHandler.HandleUpcoming, "events_upcoming"))
	mux.HandleFunc("GET /events/past", MetricsMiddleware(s.eventsHandler.HandlePast, "events_past"))
	mux.HandleFunc("GET /events/{id}", MetricsMiddleware(s.eventsHandler.HandleGetEvent, "event"))
}

// ParseCriteria reads q, category and organizerType from a query string.
// Empty values and "all" leave a dimension unconstrained; anything else must
// be a known enumeration value.
func ParseCriteria(q url.Values) (views.Criteria, error) {
	c := views.Criteria{
		SearchText:    q.Get("q"),
		Category:      strings.TrimSpace(q.Get("category")),
		OrganizerType: strings.TrimSpace(q.Get("organizerType")),
	}
	if c.Category != "" && c.Category != views.All {
		if _, err := model.ParseCategory(c.Category); err != nil {
			return views.Criteria{}, err
		}
	}
	if c.OrganizerType != "" && c.OrganizerType != views.All {
		if _, err := model.ParseOrganizerType(c.OrganizerType); err != nil {
			return views.Criteria{}, err
		}
	}
	return c, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Validation failures carry their fields and remote
// store failures carry the store's own message.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	resp := types.ErrorResponse{Code: code, Error: http.StatusText(status)}
	var verr *model.ValidationError
	var rerr *repository.RemoteError
	switch {
	case errors.As(err, &verr):
		resp.Error = "validation failed"
		resp.Fields = verr.Fields
	case errors.As(err, &rerr):
		resp.Error = rerr.Message
	case err != nil:
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}
