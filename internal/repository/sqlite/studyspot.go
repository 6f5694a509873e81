package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/studyspot-app/studyspot/internal/apperror"
	"github.com/studyspot-app/studyspot/internal/model"
	"github.com/studyspot-app/studyspot/internal/repository"
)

// compile-time check that *SpotStore implements repository.StudySpotRepository
var _ repository.StudySpotRepository = (*SpotStore)(nil)

// SpotStore is the gateway over the studyspots table. Obtain one via DB.Spots.
type SpotStore struct {
	db    *DB
	watch *watchHub[model.StudySpot]
}

// seedSpots is the built-in campus catalog inserted on first start. Spot
// rows are reference data: the application reads them everywhere but never
// writes them after seeding.
var seedSpots = []model.StudySpot{
	{ID: "spot_001", Name: "Main Library - Silent Zone", Location: "Building A, 3rd Floor", IsGroupWorkAllowed: false, IsFree: true},
	{ID: "spot_002", Name: "Library Group Study Room A", Location: "Building A, 2nd Floor", IsGroupWorkAllowed: true, IsFree: true},
	{ID: "spot_003", Name: "Engineering Lab 301", Location: "Building B, 3rd Floor", IsGroupWorkAllowed: true, IsFree: false},
	{ID: "spot_004", Name: "Computer Lab 205", Location: "Building C, 2nd Floor", IsGroupWorkAllowed: false, IsFree: true},
	{ID: "spot_005", Name: "Student Commons - Open Area", Location: "Student Center, Ground Floor", IsGroupWorkAllowed: true, IsFree: true},
	{ID: "spot_006", Name: "Quiet Study Lounge", Location: "Building D, 4th Floor", IsGroupWorkAllowed: false, IsFree: false},
	{ID: "spot_007", Name: "Outdoor Study Pavilion", Location: "Campus Garden", IsGroupWorkAllowed: true, IsFree: true},
	{ID: "spot_008", Name: "Media Center Workshop", Location: "Building E, 1st Floor", IsGroupWorkAllowed: true, IsFree: false},
	{ID: "spot_009", Name: "24/7 Study Hall", Location: "Building A, Ground Floor", IsGroupWorkAllowed: false, IsFree: true},
	{ID: "spot_010", Name: "Cafeteria Study Area", Location: "Student Center, 2nd Floor", IsGroupWorkAllowed: true, IsFree: true},
}

// Seed populates the studyspots table with the built-in catalog when the
// table is empty. It runs on every start; against a non-empty table it is
// a no-op, so re-running can never duplicate rows.
func (s *SpotStore) Seed(ctx context.Context) error {
	var count int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM studyspots`,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("sqlite: counting studyspots: %w", err)
	}
	if count > 0 {
		return nil
	}

	// One transaction for the whole batch: watchers must never observe a
	// half-seeded catalog.
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, spot := range seedSpots {
		// INSERT OR IGNORE backstops a concurrent seeder between our COUNT
		// and this statement.
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO studyspots
			     (id, name, location, is_group_work_allowed, is_free)
			 VALUES (?, ?, ?, ?, ?)`,
			spot.ID,
			spot.Name,
			spot.Location,
			spot.IsGroupWorkAllowed,
			spot.IsFree,
		)
		if err != nil {
			return fmt.Errorf("sqlite: seeding spot %s: %w", spot.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing seed: %w", err)
	}

	s.db.logger.Info("study spot catalog seeded", slog.Int("spots", len(seedSpots)))
	s.notify(ctx)
	return nil
}

// GetByID retrieves a single study spot.
// Returns apperror.ErrNotFound if no spot exists with that ID.
func (s *SpotStore) GetByID(ctx context.Context, id string) (*model.StudySpot, error) {
	var spot model.StudySpot

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, location, is_group_work_allowed, is_free
		 FROM studyspots WHERE id = ?`,
		id,
	).Scan(
		&spot.ID,
		&spot.Name,
		&spot.Location,
		&spot.IsGroupWorkAllowed,
		&spot.IsFree,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("study spot", id)
		}
		return nil, fmt.Errorf("sqlite: getting study spot %s: %w", id, err)
	}

	return &spot, nil
}

// List returns the full spot catalog in ID order.
func (s *SpotStore) List(ctx context.Context) ([]model.StudySpot, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name, location, is_group_work_allowed, is_free
		 FROM studyspots ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing study spots: %w", err)
	}
	defer rows.Close()

	var spots []model.StudySpot
	for rows.Next() {
		var spot model.StudySpot
		if err := rows.Scan(
			&spot.ID, &spot.Name, &spot.Location, &spot.IsGroupWorkAllowed, &spot.IsFree,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning study spot row: %w", err)
		}
		spots = append(spots, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating study spots: %w", err)
	}

	return spots, nil
}

// WatchAll returns a live sequence of the full spot catalog, seeded with
// the current state. In practice the catalog only changes when Seed runs
// on an empty table, but consumers should not rely on that.
func (s *SpotStore) WatchAll(ctx context.Context) (<-chan []model.StudySpot, error) {
	ch := s.watch.subscribe(ctx)

	spots, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: seeding spots watch: %w", err)
	}
	select {
	case ch <- spots:
	default:
	}

	return ch, nil
}

// notify is the studyspots counterpart of UserStore.notify.
func (s *SpotStore) notify(ctx context.Context) {
	if !s.watch.hasSubscribers() {
		return
	}
	spots, err := s.List(ctx)
	if err != nil {
		s.db.logger.Error("refreshing spots snapshot for watchers",
			slog.String("error", err.Error()))
		return
	}
	s.watch.publish(spots)
}
