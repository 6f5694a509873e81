package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studyspot-app/studyspot/internal/repository"
	"github.com/studyspot-app/studyspot/internal/service"
)

// SpotHandler serves the study spot catalog: list, search, point lookup,
// and a server-sent-events stream of catalog snapshots.
type SpotHandler struct {
	catalog *service.CatalogService
	spots   repository.StudySpotRepository
	logger  *slog.Logger
}

// NewSpotHandler creates a SpotHandler.
func NewSpotHandler(catalog *service.CatalogService, spots repository.StudySpotRepository, logger *slog.Logger) *SpotHandler {
	return &SpotHandler{
		catalog: catalog,
		spots:   spots,
		logger:  logger,
	}
}

// HandleList returns spots, optionally filtered.
//
// HTTP: GET /api/spots?q=<text>&free=<bool>
//
// The filter runs in memory against the catalog's last published snapshot
// — no query parameters means the full catalog. `free=true` keeps only
// spots that need no reservation; q matches name or location,
// case-insensitively.
func (h *SpotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	freeOnly := false
	if raw := r.URL.Query().Get("free"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "bad_request", Message: "free must be a boolean",
			})
			return
		}
		freeOnly = parsed
	}

	writeJSON(w, http.StatusOK, h.catalog.Search(query, freeOnly))
}

// HandleGetByID returns a single spot.
//
// HTTP: GET /api/spots/{id}
func (h *SpotHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	spot, err := h.spots.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, spot)
}

// HandleEvents streams catalog snapshots as server-sent events.
//
// HTTP: GET /api/spots/events
//
// Each event's data is the full JSON spot list; the first event arrives
// immediately with the current snapshot. The subscription ends when the
// client disconnects — the request context cancels and the cell closes
// our channel.
func (h *SpotHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error", Message: "streaming unsupported",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for snapshot := range h.catalog.WatchSpots(r.Context()) {
		data, err := json.Marshal(snapshot)
		if err != nil {
			h.logger.Error("encoding spot snapshot", slog.String("error", err.Error()))
			return
		}
		if _, err := fmt.Fprintf(w, "event: spots\ndata: %s\n\n", data); err != nil {
			// Client went away mid-write; the range ends once ctx cancels.
			return
		}
		flusher.Flush()
	}
}
