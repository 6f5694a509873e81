package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/studyspot-app/studyspot/internal/auth"
	"github.com/studyspot-app/studyspot/internal/model"
)

// newTestDB opens an ephemeral in-memory database with the full schema.
// Each test gets its own; Close runs automatically on cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := New(":memory:", auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// mustHash produces a bcrypt hash at minimum cost so tests stay fast.
func mustHash(t *testing.T, password string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}
	return string(hash)
}

// registerTestUser inserts a user with the given email and password "secret".
func registerTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:           email,
		Name:            "Test User",
		Password:        mustHash(t, "secret"),
		Contacts:        []string{},
		FavoriteSpotIDs: []string{},
	}
	if err := db.Users().Register(context.Background(), user); err != nil {
		t.Fatalf("registering test user %s: %v", email, err)
	}
	return user
}
