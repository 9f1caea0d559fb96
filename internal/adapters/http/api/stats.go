package api

import (
	"net/http"

	"github.com/okian/nextup/internal/domain/views"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps          Snapshotter
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Snapshotter, statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{deps: deps, statsProvider: statsProvider}
}

type statsResponse struct {
	views.Stats
	Sync map[string]interface{} `json:"sync"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Stats: views.AggregateStats(h.deps.State().Events)}
	if h.statsProvider != nil {
		resp.Sync = h.statsProvider.GetStats()
	}
	writeJSON(w, http.StatusOK, resp)
}
