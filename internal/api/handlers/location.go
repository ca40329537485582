package handlers

import (
	"context"
	"net/http"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
	"github.com/yandri918/prediksi-cuaca/internal/weather"
	"github.com/yandri918/prediksi-cuaca/pkg/logger"
)

// LocationSearcher resolves place names to coordinates
type LocationSearcher interface {
	SearchLocations(ctx context.Context, name string) ([]contracts.Location, error)
}

// LocationHandler handles location and variable lookups
type LocationHandler struct {
	searcher LocationSearcher
	logger   *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(searcher LocationSearcher, log *logger.Logger) *LocationHandler {
	return &LocationHandler{searcher: searcher, logger: log}
}

// Search finds locations by name
// GET /api/locations/search?name=Bogor
func (h *LocationHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	locations, err := h.searcher.SearchLocations(r.Context(), name)
	if err != nil {
		respondFailure(w, h.logger, err, "location search failed")
		return
	}
	if locations == nil {
		locations = []contracts.Location{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"locations": locations,
	})
}

// Variables lists forecastable weather variables
// GET /api/variables
func (h *LocationHandler) Variables(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"variables": weather.Variables(),
		"default":   weather.DefaultVariable,
	})
}
