package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the gateway over the users table. Obtain one via DB.Users.
type UserStore struct {
	db        *DB
	passwords PasswordVerifier
	watch     *watchHub[model.User]
}

// encodeList marshals a string slice to JSON array text for storage.
// nil and empty both encode as "[]" so the column is never NULL.
func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(raw), nil
}

// decodeList is the inverse of encodeList. An empty string is tolerated and
// read as an empty list, so rows written before the JSON encoding existed
// still load.
func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decoding list %q: %w", raw, err)
	}
	return values, nil
}

// isUniqueConstraintError reports whether the driver rejected a statement
// for violating a PRIMARY KEY or UNIQUE constraint. The driver has no
// exported sentinel for this, so the message text is the contract.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Register inserts a new user. The email is the primary key; inserting an
// existing one fails with apperror.ErrConflict rather than replacing the
// row — registration must never clobber an existing account. The constraint
// check happens in the INSERT itself, so concurrent registrations of the
// same email cannot both slip through.
func (s *UserStore) Register(ctx context.Context, user *model.User) error {
	contacts, err := encodeList(user.Contacts)
	if err != nil {
		return fmt.Errorf("sqlite: registering user %s: %w", user.Email, err)
	}
	favorites, err := encodeList(user.FavoriteSpotIDs)
	if err != nil {
		return fmt.Errorf("sqlite: registering user %s: %w", user.Email, err)
	}

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO users (email, name, password, location, profile_image_url,
		                    contacts, favorite_spot_ids, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		user.Email,
		user.Name,
		user.Password,
		user.Location,
		user.ProfileImageURL,
		contacts,
		favorites,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	user.Version = 0

	s.notify(ctx)
	return nil
}

// Authenticate looks the user up by email and verifies the password against
// the stored hash through the injected verifier.
//
// Both failure modes — unknown email and wrong password — return
// apperror.ErrNotFound. Callers branch on absence; they are deliberately
// given nothing that distinguishes "no such account" from "bad password",
// and the verifier's constant-time comparison keeps timing from leaking it
// either.
func (s *UserStore) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		return nil, apperror.NotFound("user", email)
	}

	return user, nil
}

// GetByEmail retrieves a user by their email address.
// Returns apperror.ErrNotFound if no user exists with that email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var (
		u         model.User
		contacts  string
		favorites string
	)

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT email, name, password, location, profile_image_url,
		        contacts, favorite_spot_ids, version
		 FROM users WHERE email = ?`,
		email,
	).Scan(
		&u.Email,
		&u.Name,
		&u.Password,
		&u.Location,
		&u.ProfileImageURL,
		&contacts,
		&favorites,
		&u.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}

	if u.Contacts, err = decodeList(contacts); err != nil {
		return nil, fmt.Errorf("sqlite: user %s contacts: %w", email, err)
	}
	if u.FavoriteSpotIDs, err = decodeList(favorites); err != nil {
		return nil, fmt.Errorf("sqlite: user %s favorites: %w", email, err)
	}

	return &u, nil
}

// Update overwrites the full row keyed by user.Email, guarded by the
// version column.
//
// OPTIMISTIC CONCURRENCY:
// The UPDATE only matches when the stored version equals user.Version, and
// it increments the column in the same statement. Two racing
// read-modify-write sequences therefore cannot silently lose a write: the
// second one finds a newer version, gets apperror.ErrConflict, and must
// re-read before retrying. A missing row is apperror.ErrNotFound — an
// update that matches nothing is reported, not swallowed.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	contacts, err := encodeList(user.Contacts)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.Email, err)
	}
	favorites, err := encodeList(user.FavoriteSpotIDs)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.Email, err)
	}

	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, password = ?, location = ?, profile_image_url = ?,
		     contacts = ?, favorite_spot_ids = ?, version = version + 1
		 WHERE email = ? AND version = ?`,
		user.Name,
		user.Password,
		user.Location,
		user.ProfileImageURL,
		contacts,
		favorites,
		user.Email,
		user.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.Email, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row is gone or somebody updated it first. Distinguish
		// so callers can react properly.
		var exists int
		if err := s.db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE email = ?`, user.Email,
		).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: checking user %s: %w", user.Email, err)
		}
		if exists == 0 {
			return apperror.NotFound("user", user.Email)
		}
		return apperror.Conflict("user", user.Email)
	}

	user.Version++
	s.notify(ctx)
	return nil
}

// WatchAll returns a live sequence of the full users table: the current
// snapshot immediately, then a fresh one after every committed mutation.
// Cancel ctx to unsubscribe; the channel is closed on cancellation.
func (s *UserStore) WatchAll(ctx context.Context) (<-chan []model.User, error) {
	ch := s.watch.subscribe(ctx)

	users, err := s.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: seeding users watch: %w", err)
	}
	select {
	case ch <- users:
	default:
	}

	return ch, nil
}

// notify publishes a fresh users snapshot to all watchers. Called after
// every committed mutation of the users table. A failed re-read is logged,
// not propagated — the write itself already succeeded.
func (s *UserStore) notify(ctx context.Context) {
	if !s.watch.hasSubscribers() {
		return
	}
	users, err := s.list(ctx)
	if err != nil {
		s.db.logger.Error("refreshing users snapshot for watchers",
			slog.String("error", err.Error()))
		return
	}
	s.watch.publish(users)
}

// list scans the whole users table. Shared by WatchAll and the
// post-mutation snapshot publisher.
func (s *UserStore) list(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT email, name, password, location, profile_image_url,
		        contacts, favorite_spot_ids, version
		 FROM users ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var (
			u         model.User
			contacts  string
			favorites string
		)
		if err := rows.Scan(
			&u.Email, &u.Name, &u.Password, &u.Location, &u.ProfileImageURL,
			&contacts, &favorites, &u.Version,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		if u.Contacts, err = decodeList(contacts); err != nil {
			return nil, fmt.Errorf("sqlite: user %s contacts: %w", u.Email, err)
		}
		if u.FavoriteSpotIDs, err = decodeList(favorites); err != nil {
			return nil, fmt.Errorf("sqlite: user %s favorites: %w", u.Email, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}
