// Package handler contains the HTTP layer: it parses requests, calls the
// view-state services, and writes JSON responses. No business rules live
// here and nothing below it knows about HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/auth"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/service"
)

// AuthHandler manages registration, login, logout, and the signed-in
// user's profile.
type AuthHandler struct {
	session *service.SessionService
	tokens  *auth.TokenService
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler with injected dependencies.
func NewAuthHandler(session *service.SessionService, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		session: session,
		tokens:  tokens,
		logger:  logger,
	}
}

type credentialsRequest struct {
	Name     string `json:"name"` // only used by register
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location"`
}

// HandleRegister creates an account and signs it in.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "bad_request", Message: "invalid JSON body",
		})
		return
	}

	user, err := h.session.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.issueSession(w, user.Email) {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin authenticates and signs the user in.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "bad_request", Message: "invalid JSON body",
		})
		return
	}

	user, err := h.session.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Absence maps to 401 here, not 404: the login endpoint must not
		// reveal whether the email exists.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized", Message: "invalid email or password",
		})
		return
	}

	if !h.issueSession(w, user.Email) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleLogout clears the session cookie and the in-memory session.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me (auth required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context(), h.session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateProfile updates name, email, and location for the signed-in
// user and returns the new profile.
//
// HTTP: PUT /api/me (auth required)
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(r.Context(), h.session); err != nil {
		writeError(w, err)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "bad_request", Message: "invalid JSON body",
		})
		return
	}

	user, err := h.session.UpdateProfile(r.Context(), req.Name, req.Email, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}

	// An email change re-keys the session; reissue the cookie so the next
	// request still authenticates.
	if !h.issueSession(w, user.Email) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// issueSession mints a session token for email and sets it as an HttpOnly
// cookie. Reports false after writing a 500 if signing fails.
func (h *AuthHandler) issueSession(w http.ResponseWriter, email string) bool {
	token, err := h.tokens.Generate(email)
	if err != nil {
		h.logger.Error("issuing session token",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal_error", Message: "could not establish session",
		})
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // enable when serving over HTTPS
	})
	return true
}

// currentUser returns the session's user, resuming it from storage when
// the in-memory session is empty or belongs to a different email than the
// validated token (e.g. after a restart).
func currentUser(ctx context.Context, session *service.SessionService) (*model.User, error) {
	email, ok := auth.EmailFromContext(ctx)
	if !ok {
		// Unreachable behind RequireAuth, but fail closed anyway.
		return nil, apperror.Forbidden("authentication required")
	}

	if cur := session.CurrentUser(); cur != nil && cur.Email == email {
		return cur, nil
	}
	return session.Resume(ctx, email)
}
