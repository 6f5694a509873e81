package auth

import (
	"context"
	"net/http"
)

// contextKey is unexported so no other package can read or shadow values
// this package stores in a request context.
type contextKey string

const emailKey contextKey = "email"

// SessionCookie is the name of the HttpOnly cookie carrying the session
// token. Shared between the middleware (reads) and the auth handlers
// (write on login, clear on logout).
const SessionCookie = "studyspot_session"

// RequireAuth enforces authentication on protected routes. It reads the
// session cookie, validates the token, and stores the subject email in the
// request context; a missing or invalid token short-circuits with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := extractEmail(r, tokens)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EmailFromContext retrieves the authenticated user's email from the
// request context. Returns ("", false) on anonymous requests.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

func extractEmail(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
