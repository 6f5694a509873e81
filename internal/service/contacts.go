package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

// ContactsService owns the resolved contact list for whichever user last
// requested a load.
type ContactsService struct {
	users  repository.UserRepository
	logger *slog.Logger

	contacts *Cell[[]model.User]
}

// NewContactsService creates a ContactsService.
func NewContactsService(users repository.UserRepository, logger *slog.Logger) *ContactsService {
	return &ContactsService{
		users:    users,
		logger:   logger,
		contacts: NewCell([]model.User{}),
	}
}

// Contacts returns the last published resolved contact list.
func (s *ContactsService) Contacts() []model.User {
	return s.contacts.Get()
}

// WatchContacts exposes the contacts cell for observation.
func (s *ContactsService) WatchContacts(ctx context.Context) <-chan []model.User {
	return s.contacts.Subscribe(ctx)
}

// ResolveContacts resolves each of the owner's contact emails to a full
// user row. Entries that do not resolve are dropped. The published cell is
// not touched — handlers resolve per request with this, so a concurrent
// load for a different owner cannot hand one user another's contact list.
//
// An unknown owner is ErrNotFound.
func (s *ContactsService) ResolveContacts(ctx context.Context, ownerEmail string) ([]model.User, error) {
	owner, err := s.users.GetByEmail(ctx, ownerEmail)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("resolving contacts for unknown owner",
				slog.String("owner", ownerEmail))
			return nil, err
		}
		return nil, fmt.Errorf("service/contacts: loading owner %s: %w", ownerEmail, err)
	}

	resolved := make([]model.User, 0, len(owner.Contacts))
	for _, email := range owner.Contacts {
		contact, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				s.logger.Error("resolving contact",
					slog.String("contact", email),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		resolved = append(resolved, *contact)
	}

	return resolved, nil
}

// LoadContacts resolves the owner's contacts and publishes the result.
//
// When the owner does not exist the cell is left untouched and the caller
// gets ErrNotFound; the previous list stays on screen. Clearing it instead
// would be defensible, but a vanished owner mid-session is not a state the
// UI can reach through normal navigation.
func (s *ContactsService) LoadContacts(ctx context.Context, ownerEmail string) error {
	resolved, err := s.ResolveContacts(ctx, ownerEmail)
	if err != nil {
		return err
	}

	s.contacts.Set(resolved)
	return nil
}

// AddContact appends contactEmail to the owner's contact set and reloads
// the published list.
//
// The guards mirror what the UI promises: both parties must exist and the
// contact must not already be present. Each failed guard returns a typed
// error so callers can decide how loudly to report it — the HTTP layer
// currently swallows duplicates into a no-op, matching the historical
// behavior where a failed add simply did nothing visible.
func (s *ContactsService) AddContact(ctx context.Context, ownerEmail, contactEmail string) error {
	contactEmail = strings.TrimSpace(contactEmail)
	if contactEmail == "" {
		return apperror.ValidationFailed("email", "contact email is required")
	}
	if contactEmail == ownerEmail {
		return apperror.ValidationFailed("email", "cannot add yourself as a contact")
	}

	owner, err := s.users.GetByEmail(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, contactEmail); err != nil {
		return err
	}
	if owner.HasContact(contactEmail) {
		return apperror.Conflict("contact", contactEmail)
	}

	updated := *owner
	updated.Contacts = append(append([]string{}, owner.Contacts...), contactEmail)

	if err := s.users.Update(ctx, &updated); err != nil {
		s.logger.Warn("adding contact failed",
			slog.String("owner", ownerEmail),
			slog.String("contact", contactEmail),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("contact added",
		slog.String("owner", ownerEmail),
		slog.String("contact", contactEmail),
	)

	return s.LoadContacts(ctx, ownerEmail)
}
