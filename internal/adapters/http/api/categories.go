package api

import (
	"net/http"

	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/internal/domain/types"
	"github.com/okian/nextup/internal/domain/views"
)

// CategoriesHandler handles category breakdown requests.
type CategoriesHandler struct {
	deps Snapshotter
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(deps Snapshotter) *CategoriesHandler {
	return &CategoriesHandler{deps: deps}
}

type categoriesResponse struct {
	Total      int                   `json:"total"`
	Categories []types.CategoryCount `json:"categories"`
}

// HandleGetCategories handles GET /categories requests. Counts are taken
// over the whole snapshot, ignoring any filter, and every category is
// listed even when empty.
func (h *CategoriesHandler) HandleGetCategories(w http.ResponseWriter, _ *http.Request) {
	events := h.deps.State().Events
	counts := views.CategoryCounts(events)
	resp := categoriesResponse{
		Total:      len(events),
		Categories: make([]types.CategoryCount, 0, len(model.Categories)),
	}
	for _, c := range model.Categories {
		resp.Categories = append(resp.Categories, types.CategoryCount{Category: string(c), Count: counts[c]})
	}
	writeJSON(w, http.StatusOK, resp)
}
