package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/service"
)

// ContactHandler manages the signed-in user's contact list.
type ContactHandler struct {
	contacts *service.ContactsService
	session  *service.SessionService
	logger   *slog.Logger
}

// NewContactHandler creates a ContactHandler.
func NewContactHandler(contacts *service.ContactsService, session *service.SessionService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		session:  session,
		logger:   logger,
	}
}

type addContactRequest struct {
	Email string `json:"email"`
}

// HandleList returns the signed-in user's resolved contacts. Contact
// emails that do not resolve to a registered user are dropped.
//
// Resolution happens per request, keyed by the request's own user; reading
// the shared contacts cell here could serve another user's list if a
// concurrent load landed between our resume and the read.
//
// HTTP: GET /api/me/contacts (auth required)
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.session)
	if err != nil {
		writeError(w, err)
		return
	}

	contacts, err := h.contacts.ResolveContacts(r.Context(), user.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}

// HandleAdd adds a contact by email.
//
// HTTP: POST /api/me/contacts (auth required)
//
// A duplicate contact and an email that is not registered both come back
// as 204: the add "did nothing", which is exactly what the UI shows. An
// attacker probing this endpoint cannot enumerate registered emails from
// the status code. Only malformed input is reported.
func (h *ContactHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.session)
	if err != nil {
		writeError(w, err)
		return
	}

	var req addContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "bad_request", Message: "invalid JSON body",
		})
		return
	}

	err = h.contacts.AddContact(r.Context(), user.Email, req.Email)
	switch {
	case err == nil:
		// The contact add bumped the user row's version; refresh the
		// session copy so the next favorite edit doesn't hit a stale
		// version conflict.
		if err := h.session.Reload(r.Context()); err != nil {
			h.logger.Warn("session reload after contact add",
				slog.String("error", err.Error()))
		}
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, apperror.ErrConflict), errors.Is(err, apperror.ErrNotFound):
		h.logger.Info("contact add did nothing",
			slog.String("owner", user.Email),
			slog.String("error", err.Error()),
		)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, err)
	}
}
