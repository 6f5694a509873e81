// Package service contains the view-state layer: one service per UI
// concern, each owning the reactive cells that screens render from.
//
// THE FLOW:
//
//	UI action → service method → repository call → result folded into the
//	service's cell → UI re-renders from the cell
//
// Services never touch HTTP and handlers never touch SQL. Each service
// receives the repository interfaces it needs (not the concrete sqlite.DB)
// plus a *slog.Logger, and is the only writer of its own cells.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/auth"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

// SessionService owns the identity state: who is signed in, and the
// resolved list of their favorite spots.
//
// STATE MACHINE:
// Unauthenticated (current user nil) → Authenticated (via Register or
// Authenticate) → Unauthenticated (via Logout). There are no intermediate
// states; callers infer "in flight" from the absence of a result.
type SessionService struct {
	users     repository.UserRepository
	spots     repository.StudySpotRepository
	passwords *auth.PasswordService
	logger    *slog.Logger

	current   *Cell[*model.User]
	favorites *Cell[[]model.StudySpot]
}

// NewSessionService creates a SessionService with all dependencies injected.
func NewSessionService(
	users repository.UserRepository,
	spots repository.StudySpotRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		users:     users,
		spots:     spots,
		passwords: passwords,
		logger:    logger,
		current:   NewCell[*model.User](nil),
		favorites: NewCell([]model.StudySpot{}),
	}
}

// CurrentUser returns the signed-in user, or nil when unauthenticated.
func (s *SessionService) CurrentUser() *model.User {
	return s.current.Get()
}

// FavoriteSpots returns the resolved favorite list for the current user.
// Empty when unauthenticated or when no favorite resolves.
func (s *SessionService) FavoriteSpots() []model.StudySpot {
	return s.favorites.Get()
}

// WatchCurrentUser exposes the current-user cell for observation.
func (s *SessionService) WatchCurrentUser(ctx context.Context) <-chan *model.User {
	return s.current.Subscribe(ctx)
}

// SetCurrentUser replaces the session's user and re-resolves the favorite
// spots from scratch.
func (s *SessionService) SetCurrentUser(ctx context.Context, user *model.User) {
	s.current.Set(user)
	s.refreshFavorites(ctx)
}

// Register creates a new account with empty contacts and favorites and
// signs it in.
//
// The caller gets a short generic failure: an attacker probing the register
// endpoint learns nothing about which emails exist. The real cause is
// logged here, where operators can see it.
func (s *SessionService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/session: hashing password: %w", err)
	}

	user := &model.User{
		Email:           email,
		Name:            name,
		Password:        hash,
		Contacts:        []string{},
		FavoriteSpotIDs: []string{},
	}

	if err := s.users.Register(ctx, user); err != nil {
		s.logger.Warn("registration failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, &apperror.AppError{Err: cause(err), Message: "registration failed"}
	}

	s.logger.Info("user registered", slog.String("email", email))
	s.SetCurrentUser(ctx, user)
	return user, nil
}

// Authenticate signs a user in. A miss — unknown email or wrong password —
// comes back as a single generic message with no detail about which it was.
func (s *SessionService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "invalid email or password"}
		}
		s.logger.Error("authentication lookup failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/session: authenticating %s: %w", email, err)
	}

	s.logger.Info("user authenticated", slog.String("email", email))
	s.SetCurrentUser(ctx, user)
	return user, nil
}

// Resume loads the user for the given email and signs them in. The HTTP
// layer calls this when a valid session token arrives but the in-memory
// session is empty or belongs to someone else — a process restart, say.
func (s *SessionService) Resume(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	s.SetCurrentUser(ctx, user)
	return user, nil
}

// Reload re-reads the current user's row and republishes it. Used after
// another service mutates the same row (a contact add bumps the version),
// so later favorite edits from this session do not fail the version check.
func (s *SessionService) Reload(ctx context.Context) error {
	cur := s.current.Get()
	if cur == nil {
		return nil
	}
	if _, err := s.Resume(ctx, cur.Email); err != nil {
		return fmt.Errorf("service/session: reloading %s: %w", cur.Email, err)
	}
	return nil
}

// Logout clears both cells: no user, no favorites.
func (s *SessionService) Logout() {
	s.current.Set(nil)
	s.favorites.Set([]model.StudySpot{})
	s.logger.Info("user logged out")
}

// UpdateProfile persists new name/email/location for the current user and
// republishes the cell.
//
// Changing the email rewrites the primary key the row is addressed by, so
// the keyed update no longer matches and comes back as ErrNotFound rather
// than silently writing nothing. A proper email change would need a
// delete-and-reinsert plus rewriting every contact list that references
// the old address; until someone needs that, the operation fails loudly.
func (s *SessionService) UpdateProfile(ctx context.Context, name, email, location string) (*model.User, error) {
	cur := s.current.Get()
	if cur == nil {
		return nil, apperror.Forbidden("no user is signed in")
	}

	updated := *cur
	if name = strings.TrimSpace(name); name != "" {
		updated.Name = name
	}
	if email = strings.TrimSpace(email); email != "" {
		updated.Email = email
	}
	updated.Location = strings.TrimSpace(location)

	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.Warn("profile update failed",
			slog.String("email", updated.Email),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.current.Set(&updated)
	return &updated, nil
}

// AddFavorite adds the spot to the current user's favorites if it is not
// already there, persists, and re-resolves the favorites cell. Adding a
// favorite that is already present is a no-op, not an error.
func (s *SessionService) AddFavorite(ctx context.Context, spot *model.StudySpot) error {
	cur := s.current.Get()
	if cur == nil {
		return apperror.Forbidden("no user is signed in")
	}
	if cur.HasFavorite(spot.ID) {
		return nil
	}

	updated := *cur
	updated.FavoriteSpotIDs = append(append([]string{}, cur.FavoriteSpotIDs...), spot.ID)

	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.Warn("adding favorite failed",
			slog.String("email", cur.Email),
			slog.String("spot", spot.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.current.Set(&updated)
	s.refreshFavorites(ctx)
	return nil
}

// RemoveFavorite removes the spot ID from the current user's favorites.
// Removing an ID that is not present is a no-op.
func (s *SessionService) RemoveFavorite(ctx context.Context, spotID string) error {
	cur := s.current.Get()
	if cur == nil {
		return apperror.Forbidden("no user is signed in")
	}
	if !cur.HasFavorite(spotID) {
		return nil
	}

	updated := *cur
	updated.FavoriteSpotIDs = make([]string, 0, len(cur.FavoriteSpotIDs)-1)
	for _, id := range cur.FavoriteSpotIDs {
		if id != spotID {
			updated.FavoriteSpotIDs = append(updated.FavoriteSpotIDs, id)
		}
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.Warn("removing favorite failed",
			slog.String("email", cur.Email),
			slog.String("spot", spotID),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.current.Set(&updated)
	s.refreshFavorites(ctx)
	return nil
}

// ResolveFavorites resolves each of the user's favorite IDs to a full spot
// through the spot gateway. IDs that no longer resolve are dropped without
// an error — dangling favorites stay in storage but never reach a screen.
//
// The method reads and writes no session state: handlers resolve for the
// request's own user with it, so a concurrent request resuming the shared
// session as somebody else cannot swap the list out from under them.
func (s *SessionService) ResolveFavorites(ctx context.Context, user *model.User) []model.StudySpot {
	if user == nil {
		return []model.StudySpot{}
	}

	resolved := make([]model.StudySpot, 0, len(user.FavoriteSpotIDs))
	for _, id := range user.FavoriteSpotIDs {
		spot, err := s.spots.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				s.logger.Error("resolving favorite spot",
					slog.String("spot", id),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		resolved = append(resolved, *spot)
	}

	return resolved
}

// refreshFavorites republishes the favorites cell for the current user.
func (s *SessionService) refreshFavorites(ctx context.Context) {
	s.favorites.Set(s.ResolveFavorites(ctx, s.current.Get()))
}

// cause strips everything but the sentinel from an error chain so a generic
// user-facing AppError can still be classified by the HTTP layer.
func cause(err error) error {
	switch {
	case errors.Is(err, apperror.ErrConflict):
		return apperror.ErrConflict
	case errors.Is(err, apperror.ErrNotFound):
		return apperror.ErrNotFound
	case errors.Is(err, apperror.ErrValidation):
		return apperror.ErrValidation
	default:
		return err
	}
}
