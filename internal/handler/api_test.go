package handler

// End-to-end tests over the real stack: an in-memory database, the real
// services, and a chi router matching the production route table. The
// client carries a cookie jar, so the session cookie flows exactly as a
// browser would send it.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyspot-app/studyspot/internal/auth"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository/sqlite"
	"github.com/studyspot-app/studyspot/internal/service"
)

func newTestAPI(t *testing.T) (*http.Client, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)

	db, err := sqlite.New(":memory:", passwords, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Spots().Seed(context.Background()))

	tokens, err := auth.NewTokenService("test-secret-0123456789abcdef")
	require.NoError(t, err)

	session := service.NewSessionService(db.Users(), db.Spots(), passwords, logger)
	catalog := service.NewCatalogService(db.Spots(), logger)
	contacts := service.NewContactsService(db.Users(), logger)
	t.Cleanup(catalog.Close)

	require.NoError(t, catalog.Refresh(context.Background()))

	// Refresh fills the catalog cell asynchronously; wait for it.
	deadline := time.Now().Add(time.Second)
	for len(catalog.Spots()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the catalog to load")
		}
		time.Sleep(5 * time.Millisecond)
	}

	authHandler := NewAuthHandler(session, tokens, logger)
	spotHandler := NewSpotHandler(catalog, db.Spots(), logger)
	favHandler := NewFavoriteHandler(session, db.Spots(), logger)
	contactHandler := NewContactHandler(contacts, session, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Get("/spots", spotHandler.HandleList)
		r.Get("/spots/{id}", spotHandler.HandleGetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me", authHandler.HandleUpdateProfile)

			r.Get("/me/favorites", favHandler.HandleList)
			r.Put("/me/favorites/{id}", favHandler.HandleAdd)
			r.Delete("/me/favorites/{id}", favHandler.HandleRemove)

			r.Get("/me/contacts", contactHandler.HandleList)
			r.Post("/me/contacts", contactHandler.HandleAdd)
		})
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{Jar: jar}, ts.URL
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, client *http.Client, base, name, email string) {
	t.Helper()

	resp := doJSON(t, client, http.MethodPost, base+"/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// ===== AUTH FLOW TESTS =====

func TestRegisterLoginMeFlow(t *testing.T) {
	client, base := newTestAPI(t)

	resp := doJSON(t, client, http.MethodPost, base+"/api/auth/register", map[string]string{
		"name": "Alice", "email": "alice@campus.edu", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password", "response body must never carry the password field")

	resp = doJSON(t, client, http.MethodGet, base+"/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.User](t, resp)
	assert.Equal(t, "alice@campus.edu", me.Email)
	assert.Equal(t, "Alice", me.Name)

	resp = doJSON(t, client, http.MethodPost, base+"/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The cleared cookie must no longer authenticate.
	resp = doJSON(t, client, http.MethodGet, base+"/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, base+"/api/auth/login", map[string]string{
		"email": "alice@campus.edu", "password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, base+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	client, base := newTestAPI(t)
	register(t, client, base, "Alice", "alice@campus.edu")

	// Fresh client: no cookie from registration.
	plain := &http.Client{}
	resp := doJSON(t, plain, http.MethodPost, base+"/api/auth/login", map[string]string{
		"email": "alice@campus.edu", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid email or password", body.Message)
}

func TestMeRequiresAuth(t *testing.T) {
	_, base := newTestAPI(t)

	plain := &http.Client{}
	resp := doJSON(t, plain, http.MethodGet, base+"/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateProfile(t *testing.T) {
	client, base := newTestAPI(t)
	register(t, client, base, "Alice", "alice@campus.edu")

	resp := doJSON(t, client, http.MethodPut, base+"/api/me", map[string]string{
		"name": "Alice B.", "location": "Building C",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decode[model.User](t, resp)
	assert.Equal(t, "Alice B.", updated.Name)
	assert.Equal(t, "Building C", updated.Location)
	assert.Equal(t, "alice@campus.edu", updated.Email)
}

// ===== SPOT TESTS =====

func TestSpotListAndSearch(t *testing.T) {
	client, base := newTestAPI(t)

	resp := doJSON(t, client, http.MethodGet, base+"/api/spots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[[]model.StudySpot](t, resp)
	assert.Len(t, all, 10)

	resp = doJSON(t, client, http.MethodGet, base+"/api/spots?q=library&free=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	filtered := decode[[]model.StudySpot](t, resp)
	require.Len(t, filtered, 2)
	assert.Equal(t, "spot_001", filtered[0].ID)
	assert.Equal(t, "spot_002", filtered[1].ID)

	resp = doJSON(t, client, http.MethodGet, base+"/api/spots?free=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSpotGetByID(t *testing.T) {
	client, base := newTestAPI(t)

	resp := doJSON(t, client, http.MethodGet, base+"/api/spots/spot_007", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	spot := decode[model.StudySpot](t, resp)
	assert.Equal(t, "Outdoor Study Pavilion", spot.Name)

	resp = doJSON(t, client, http.MethodGet, base+"/api/spots/spot_042", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ===== FAVORITE TESTS =====

func TestFavoritesFlow(t *testing.T) {
	client, base := newTestAPI(t)
	register(t, client, base, "Alice", "alice@campus.edu")

	resp := doJSON(t, client, http.MethodPut, base+"/api/me/favorites/spot_003", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, base+"/api/me/favorites", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	favs := decode[[]model.StudySpot](t, resp)
	require.Len(t, favs, 1)
	assert.Equal(t, "spot_003", favs[0].ID)

	// Unknown spot IDs are a 404, not a silent write.
	resp = doJSON(t, client, http.MethodPut, base+"/api/me/favorites/spot_042", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, client, http.MethodDelete, base+"/api/me/favorites/spot_003", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// DELETE is idempotent.
	resp = doJSON(t, client, http.MethodDelete, base+"/api/me/favorites/spot_003", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, base+"/api/me/favorites", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	favs = decode[[]model.StudySpot](t, resp)
	assert.Empty(t, favs)
}

// ===== CONTACT TESTS =====

func TestContactsFlow(t *testing.T) {
	client, base := newTestAPI(t)

	// Register the contact first so the later registration leaves the
	// session (and the cookie jar) on the owner.
	register(t, client, base, "Bob", "bob@campus.edu")
	register(t, client, base, "Alice", "alice@campus.edu")

	resp := doJSON(t, client, http.MethodPost, base+"/api/me/contacts", map[string]string{
		"email": "bob@campus.edu",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, base+"/api/me/contacts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	contacts := decode[[]model.User](t, resp)
	require.Len(t, contacts, 1)
	assert.Equal(t, "bob@campus.edu", contacts[0].Email)

	// Duplicates and unknown emails both come back as 204 no-ops: the
	// endpoint must not reveal which addresses are registered.
	resp = doJSON(t, client, http.MethodPost, base+"/api/me/contacts", map[string]string{
		"email": "bob@campus.edu",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, base+"/api/me/contacts", map[string]string{
		"email": "ghost@campus.edu",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, base+"/api/me/contacts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	contacts = decode[[]model.User](t, resp)
	assert.Len(t, contacts, 1)

	// Adding yourself is malformed input and is reported.
	resp = doJSON(t, client, http.MethodPost, base+"/api/me/contacts", map[string]string{
		"email": "alice@campus.edu",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
