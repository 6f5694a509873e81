// Package repository declares the typed data-access interfaces (gateways)
// the service layer depends on. The sqlite subpackage implements them;
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/studyspot-app/studyspot/internal/model"
)

// UserRepository is the gateway over the users table.
type UserRepository interface {
	// Register inserts a new user and fails with apperror.ErrConflict if the
	// email is already taken.
	Register(ctx context.Context, user *model.User) error

	// Authenticate returns the user when the email exists and the password
	// matches its stored hash. Both an unknown email and a wrong password
	// yield apperror.ErrNotFound — absence, never a distinguishable failure.
	Authenticate(ctx context.Context, email, password string) (*model.User, error)

	// GetByEmail is a point lookup; apperror.ErrNotFound on absence.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Update overwrites the row identified by user.Email, but only if the
	// stored version still equals user.Version (optimistic concurrency).
	// Missing row → apperror.ErrNotFound; stale version → apperror.ErrConflict.
	// On success user.Version is advanced to the stored value.
	Update(ctx context.Context, user *model.User) error

	// WatchAll emits the current full table immediately, then a fresh
	// snapshot after every committed mutation. The channel closes when ctx
	// is cancelled.
	WatchAll(ctx context.Context) (<-chan []model.User, error)
}

// StudySpotRepository is the gateway over the studyspots table.
// Spots are seeded reference data: read-only from the application's side.
type StudySpotRepository interface {
	// GetByID is a point lookup; apperror.ErrNotFound on absence.
	GetByID(ctx context.Context, id string) (*model.StudySpot, error)

	// List returns all spots.
	List(ctx context.Context) ([]model.StudySpot, error)

	// WatchAll behaves like UserRepository.WatchAll for the spots table.
	WatchAll(ctx context.Context) (<-chan []model.StudySpot, error)

	// Seed inserts the built-in spot catalog if the table is empty.
	// Running it against a non-empty table is a no-op.
	Seed(ctx context.Context) error
}
