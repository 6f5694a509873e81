package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

// CatalogService owns the full study-spot list and a synchronous in-memory
// search over it.
type CatalogService struct {
	spots  repository.StudySpotRepository
	logger *slog.Logger

	list *Cell[[]model.StudySpot]

	// mu guards cancel: Refresh replaces the watch subscription instead of
	// stacking a new one on every call. Without this, repeated refreshes
	// would leak goroutines that all feed the same cell.
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCatalogService creates a CatalogService. Call Refresh to start
// following the catalog; call Close on teardown.
func NewCatalogService(spots repository.StudySpotRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		spots:  spots,
		logger: logger,
		list:   NewCell([]model.StudySpot{}),
	}
}

// Refresh subscribes to the live spot sequence and folds every emission
// into the list cell. Calling it again cancels the previous subscription
// first, so there is never more than one active watch per service.
func (c *CatalogService) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	ch, err := c.spots.WatchAll(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("service/catalog: starting watch: %w", err)
	}

	go func() {
		for snapshot := range ch {
			c.list.Set(snapshot)
		}
		c.logger.Debug("catalog watch ended")
	}()

	return nil
}

// Close stops the active watch subscription, if any.
func (c *CatalogService) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Spots returns the last published catalog snapshot.
func (c *CatalogService) Spots() []model.StudySpot {
	return c.list.Get()
}

// WatchSpots exposes the catalog cell for observation.
func (c *CatalogService) WatchSpots(ctx context.Context) <-chan []model.StudySpot {
	return c.list.Subscribe(ctx)
}

// Search filters the last published snapshot. It is pure and synchronous:
// no database round trip, just the in-memory list.
//
// A spot matches when its name or location contains the query
// case-insensitively (an empty query matches everything), and, if freeOnly
// is set, when it requires no reservation.
func (c *CatalogService) Search(query string, freeOnly bool) []model.StudySpot {
	q := strings.ToLower(strings.TrimSpace(query))
	spots := c.list.Get()

	matches := make([]model.StudySpot, 0, len(spots))
	for _, spot := range spots {
		if q != "" &&
			!strings.Contains(strings.ToLower(spot.Name), q) &&
			!strings.Contains(strings.ToLower(spot.Location), q) {
			continue
		}
		if freeOnly && !spot.IsFree {
			continue
		}
		matches = append(matches, spot)
	}

	return matches
}
