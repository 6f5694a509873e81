package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/model"
)

// ===== REGISTER TESTS =====

func TestRegisterAndGetByEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{
		Email:           "alice@campus.edu",
		Name:            "Alice",
		Password:        mustHash(t, "secret"),
		Location:        "Building A",
		Contacts:        []string{"bob@campus.edu"},
		FavoriteSpotIDs: []string{"spot_001", "spot_003"},
	}
	if err := db.Users().Register(ctx, user); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Version != 0 {
		t.Errorf("Version after register = %d, want 0", user.Version)
	}

	got, err := db.Users().GetByEmail(ctx, "alice@campus.edu")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice")
	}
	if got.Location != "Building A" {
		t.Errorf("Location = %q, want %q", got.Location, "Building A")
	}
	if len(got.Contacts) != 1 || got.Contacts[0] != "bob@campus.edu" {
		t.Errorf("Contacts = %v, want [bob@campus.edu]", got.Contacts)
	}
	if len(got.FavoriteSpotIDs) != 2 || got.FavoriteSpotIDs[0] != "spot_001" {
		t.Errorf("FavoriteSpotIDs = %v, want [spot_001 spot_003]", got.FavoriteSpotIDs)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	registerTestUser(t, db, "alice@campus.edu")

	dup := &model.User{
		Email:    "alice@campus.edu",
		Name:     "Imposter",
		Password: mustHash(t, "other"),
	}
	err := db.Users().Register(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Register() duplicate error = %v, want ErrConflict", err)
	}

	// The original row must be untouched.
	got, err := db.Users().GetByEmail(context.Background(), "alice@campus.edu")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Name != "Test User" {
		t.Errorf("Name after failed duplicate register = %q, want %q", got.Name, "Test User")
	}
}

func TestRegisterEmptyListsStoredAsEmpty(t *testing.T) {
	db := newTestDB(t)

	registerTestUser(t, db, "alice@campus.edu")

	got, err := db.Users().GetByEmail(context.Background(), "alice@campus.edu")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Contacts == nil || len(got.Contacts) != 0 {
		t.Errorf("Contacts = %v, want empty non-nil slice", got.Contacts)
	}
	if got.FavoriteSpotIDs == nil || len(got.FavoriteSpotIDs) != 0 {
		t.Errorf("FavoriteSpotIDs = %v, want empty non-nil slice", got.FavoriteSpotIDs)
	}
}

// ===== AUTHENTICATE TESTS =====

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	registerTestUser(t, db, "alice@campus.edu")

	got, err := db.Users().Authenticate(ctx, "alice@campus.edu", "secret")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.Email != "alice@campus.edu" {
		t.Errorf("Email = %q, want %q", got.Email, "alice@campus.edu")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	db := newTestDB(t)

	registerTestUser(t, db, "alice@campus.edu")

	_, err := db.Users().Authenticate(context.Background(), "alice@campus.edu", "wrong")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Authenticate() wrong password error = %v, want ErrNotFound", err)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().Authenticate(context.Background(), "ghost@campus.edu", "secret")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Authenticate() unknown email error = %v, want ErrNotFound", err)
	}
}

// ===== GET TESTS =====

func TestGetByEmailNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByEmail(context.Background(), "ghost@campus.edu")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

// ===== UPDATE TESTS =====

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := registerTestUser(t, db, "alice@campus.edu")

	user.Name = "Alice Updated"
	user.Location = "Building B"
	user.FavoriteSpotIDs = []string{"spot_005"}
	if err := db.Users().Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if user.Version != 1 {
		t.Errorf("Version after update = %d, want 1", user.Version)
	}

	got, err := db.Users().GetByEmail(ctx, "alice@campus.edu")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Name != "Alice Updated" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice Updated")
	}
	if len(got.FavoriteSpotIDs) != 1 || got.FavoriteSpotIDs[0] != "spot_005" {
		t.Errorf("FavoriteSpotIDs = %v, want [spot_005]", got.FavoriteSpotIDs)
	}
	if got.Version != 1 {
		t.Errorf("stored Version = %d, want 1", got.Version)
	}
}

func TestUpdateMissingUser(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.User{Email: "ghost@campus.edu", Name: "Ghost"}
	err := db.Users().Update(context.Background(), ghost)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() missing user error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStaleVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := registerTestUser(t, db, "alice@campus.edu")

	// Two copies of the same row. The first update wins; the second carries
	// the old version and must get a conflict instead of clobbering.
	stale := *user

	user.Name = "First Writer"
	if err := db.Users().Update(ctx, user); err != nil {
		t.Fatalf("first Update() error = %v", err)
	}

	stale.Name = "Second Writer"
	err := db.Users().Update(ctx, &stale)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("stale Update() error = %v, want ErrConflict", err)
	}

	got, err := db.Users().GetByEmail(ctx, "alice@campus.edu")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Name != "First Writer" {
		t.Errorf("Name = %q, want the first writer's value", got.Name)
	}
}

// ===== WATCH TESTS =====

func TestWatchAllUsers(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registerTestUser(t, db, "alice@campus.edu")

	ch, err := db.Users().WatchAll(ctx)
	if err != nil {
		t.Fatalf("WatchAll() error = %v", err)
	}

	// First emission is the current table.
	select {
	case snapshot := <-ch:
		if len(snapshot) != 1 || snapshot[0].Email != "alice@campus.edu" {
			t.Fatalf("initial snapshot = %v, want [alice]", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	// A committed mutation publishes a fresh one.
	registerTestUser(t, db, "bob@campus.edu")

	select {
	case snapshot := <-ch:
		if len(snapshot) != 2 {
			t.Fatalf("snapshot after register has %d users, want 2", len(snapshot))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot after mutation")
	}
}

func TestWatchAllUnsubscribesOnCancel(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := db.Users().WatchAll(ctx)
	if err != nil {
		t.Fatalf("WatchAll() error = %v", err)
	}

	cancel()

	// The channel closes once the cancellation is observed. Drain until
	// closed; buffered snapshots may still arrive first.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancellation")
		}
	}
}
