package service

// In-memory gateway mocks sharing the sqlite implementation's error
// contract: conflicts on duplicate register, not-found on absence, version
// checks on update. Tests that need a forced failure set the err fields.

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.StudySpotRepository = (*mockSpotRepo)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User

	updateErr error // returned by the next Update when set
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]model.User)}
}

func (m *mockUserRepo) Register(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return apperror.Conflict("user", user.Email)
	}
	user.Version = 0
	m.users[user.Email] = *user
	return nil
}

func (m *mockUserRepo) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := m.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperror.NotFound("user", email)
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	out := user
	return &out, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	stored, ok := m.users[user.Email]
	if !ok {
		return apperror.NotFound("user", user.Email)
	}
	if stored.Version != user.Version {
		return apperror.Conflict("user", user.Email)
	}
	user.Version++
	m.users[user.Email] = *user
	return nil
}

func (m *mockUserRepo) WatchAll(ctx context.Context) (<-chan []model.User, error) {
	m.mu.Lock()
	snapshot := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		snapshot = append(snapshot, u)
	}
	m.mu.Unlock()

	ch := make(chan []model.User, 1)
	ch <- snapshot
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type mockSpotRepo struct {
	mu    sync.Mutex
	spots []model.StudySpot

	// watchCtxs records the context of every WatchAll call so tests can
	// assert that stale subscriptions get cancelled.
	watchCtxs []context.Context
}

func newMockSpotRepo(spots ...model.StudySpot) *mockSpotRepo {
	return &mockSpotRepo{spots: spots}
}

func (m *mockSpotRepo) GetByID(ctx context.Context, id string) (*model.StudySpot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.spots {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, apperror.NotFound("study spot", id)
}

func (m *mockSpotRepo) List(ctx context.Context) ([]model.StudySpot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StudySpot{}, m.spots...), nil
}

func (m *mockSpotRepo) WatchAll(ctx context.Context) (<-chan []model.StudySpot, error) {
	m.mu.Lock()
	m.watchCtxs = append(m.watchCtxs, ctx)
	snapshot := append([]model.StudySpot{}, m.spots...)
	m.mu.Unlock()

	ch := make(chan []model.StudySpot, 1)
	ch <- snapshot
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *mockSpotRepo) Seed(ctx context.Context) error {
	return nil
}
