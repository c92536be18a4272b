package handler

import (
	"log/slog"
	"net/http"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/dataset"
)

type DatasetHandler struct {
	service *dataset.Service
	logger  *slog.Logger
}

func NewDatasetHandler(service *dataset.Service, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{
		service: service,
		logger:  logger,
	}
}

// Get serves the points for one series. Premium series require the request's
// resolved entitlement to grant premium access; an expired subscription is
// denied here even though its stored flag still reads premium.
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	series, ok := dataset.ParseSeries(r.PathValue("series"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown series")
		return
	}

	if h.service.Premium(series) && !auth.Premium(r.Context()) {
		writeError(w, http.StatusForbidden, "premium subscription required")
		return
	}

	if !h.service.Configured(series) {
		writeError(w, http.StatusServiceUnavailable, "series has no configured source")
		return
	}

	points, err := h.service.Fetch(r.Context(), series)
	if err != nil {
		h.logger.Error("fetch series", "series", series, "error", err)
		writeError(w, http.StatusBadGateway, "data source unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"series": series,
		"points": points,
	})
}
