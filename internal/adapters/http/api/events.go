package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	repository "github.com/okian/nextup/internal/adapters/repository"
	service "github.com/okian/nextup/internal/app"
	"github.com/okian/nextup/internal/clock"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/internal/domain/types"
	"github.com/okian/nextup/internal/domain/views"
)

// IdempotencyHeader lets a client retry POST /events without double-creating.
const IdempotencyHeader = "Idempotency-Key"

// EventsHandler handles event requests.
type EventsHandler struct {
	deps  Dependencies
	clock clock.Clock
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, c clock.Clock) *EventsHandler {
	return &EventsHandler{deps: deps, clock: c}
}

// HandleListEvents handles GET /events requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	criteria, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st := h.deps.State()
	writeJSON(w, http.StatusOK, eventsResponse(st, views.Filter(st.Events, criteria)))
}

// HandleUpcoming handles GET /events/upcoming requests.
func (h *EventsHandler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	h.handlePartition(w, r, true)
}

// HandlePast handles GET /events/past requests.
func (h *EventsHandler) HandlePast(w http.ResponseWriter, r *http.Request) {
	h.handlePartition(w, r, false)
}

func (h *EventsHandler) handlePartition(w http.ResponseWriter, r *http.Request, upcoming bool) {
	const op = "api.partition_events"
	criteria, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st := h.deps.State()
	up, past := views.PartitionByDate(views.Filter(st.Events, criteria), h.clock.Now())
	if upcoming {
		writeJSON(w, http.StatusOK, eventsResponse(st, up))
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse(st, past))
}

func eventsResponse(st service.State, events []model.Event) types.EventsResponse {
	return types.EventsResponse{
		Events:   types.FromEvents(events),
		Loading:  st.Loading,
		Error:    st.Error,
		Total:    len(st.Events),
		Filtered: len(events),
	}
}

// HandleGetEvent handles GET /events/{id} requests.
func (h *EventsHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_event"
	id := r.PathValue("id")
	for _, e := range h.deps.State().Events {
		if e.ID == id {
			writeJSON(w, http.StatusOK, types.DetailFromEvent(e))
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req types.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	// Submissions without an organizer account get a fresh one.
	if strings.TrimSpace(req.OrganizerID) == "" {
		req.OrganizerID = uuid.NewString()
	}
	draft, err := req.ToDraft()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err)
		return
	}

	// Idempotency check - mark as seen first
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.deps.SeenAndRecord(r.Context(), key) {
		writeError(w, http.StatusConflict, "duplicate", NewKind(op, ErrDuplicate))
		return
	}

	e, err := h.deps.CreateEvent(r.Context(), draft)
	if err != nil {
		// Rollback the "seen" status so the client can retry
		if key != "" {
			h.deps.Unrecord(r.Context(), key)
		}
		var verr *model.ValidationError
		var rerr *repository.RemoteError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "validation_failed", err)
		case errors.As(err, &rerr):
			writeError(w, http.StatusBadGateway, "remote_error", err)
		case errors.Is(err, service.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, types.DetailFromEvent(e))
}

type refreshResponse struct {
	Status      string `json:"status"`
	RequestedAt string `json:"requestedAt"`
}

// HandleRefresh handles POST /events/refresh requests.
func (h *EventsHandler) HandleRefresh(w http.ResponseWriter, _ *http.Request) {
	const op = "api.refresh"
	if !h.deps.RequestRefresh("manual") {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{
		Status:      "accepted",
		RequestedAt: h.clock.Now().UTC().Format(time.RFC3339),
	})
}
