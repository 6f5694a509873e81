package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/repository"
	"github.com/studyspot-app/studyspot/internal/service"
)

// FavoriteHandler manages the signed-in user's favorite spots.
type FavoriteHandler struct {
	session *service.SessionService
	spots   repository.StudySpotRepository
	logger  *slog.Logger
}

// NewFavoriteHandler creates a FavoriteHandler.
func NewFavoriteHandler(session *service.SessionService, spots repository.StudySpotRepository, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		session: session,
		spots:   spots,
		logger:  logger,
	}
}

// HandleList returns the resolved favorite spots for the signed-in user.
// Favorites whose spot no longer exists are simply absent from the list.
//
// The list is resolved from the request's own user rather than read off the
// shared session cell: a concurrent request may resume the session as a
// different account between our resume and the read.
//
// HTTP: GET /api/me/favorites (auth required)
func (h *FavoriteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.ResolveFavorites(r.Context(), user))
}

// HandleAdd adds a spot to the favorites. Adding a spot that is already a
// favorite succeeds without changing anything.
//
// HTTP: PUT /api/me/favorites/{id} (auth required)
func (h *FavoriteHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r.Context(), h.session); err != nil {
		writeError(w, err)
		return
	}

	// Resolve the spot first: adding a favorite for an ID the catalog has
	// never heard of is a client bug worth a 404, not a silent write.
	spot, err := h.spots.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.session.AddFavorite(r.Context(), spot); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove removes a spot ID from the favorites. Removing an ID that
// is not a favorite is a no-op — DELETE is idempotent either way.
//
// HTTP: DELETE /api/me/favorites/{id} (auth required)
func (h *FavoriteHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r.Context(), h.session); err != nil {
		writeError(w, err)
		return
	}

	if err := h.session.RemoveFavorite(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
