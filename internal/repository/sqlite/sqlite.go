// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// The whole data set is two small tables owned by a single process. An
// embedded database gives us durable, transactional storage without a
// server to run, and ":memory:" makes the test suite trivial to isolate.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite — no CGo, no C toolchain, and
// cross-compilation stays painless. The driver registers itself with
// database/sql under the name "sqlite" via the blank import below.
//
// LIVE QUERIES:
// Room-style reactive reads are modelled explicitly: each store owns a watch
// hub for its table (see watch.go), and every committed mutation re-reads the
// full table and publishes the snapshot to all current subscribers. There
// is no ambient global — the DB is constructed once and handed to every
// gateway consumer.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/studyspot-app/studyspot/internal/model"

	_ "modernc.org/sqlite"
)

// PasswordVerifier checks a plaintext password against a stored hash.
// auth.PasswordService satisfies it; the store only ever verifies, never
// hashes, so the narrower interface keeps hashing policy out of this package.
type PasswordVerifier interface {
	Verify(hash, plaintext string) error
}

// DB wraps a sql.DB connection pool and hands out the per-table gateways.
// The gateways live on their own types so each can carry its table's watch
// hub and method set without colliding with the other's.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger

	users *UserStore
	spots *SpotStore
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string, passwords PasswordVerifier, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time; a second pooled connection would
	// just trade waits for SQLITE_BUSY errors. One connection also keeps
	// ":memory:" databases coherent — each new connection would otherwise
	// get its own empty database.
	conn.SetMaxOpenConns(1)

	// sql.Open only builds the pool; Ping forces a real connection so a bad
	// path fails here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight. The watch
	// hubs re-read tables right after writes, so this matters even for a
	// single-process deployment.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:   conn,
		logger: logger,
	}
	db.users = &UserStore{
		db:        db,
		passwords: passwords,
		watch:     newWatchHub[model.User](logger.With("table", "users")),
	}
	db.spots = &SpotStore{
		db:    db,
		watch: newWatchHub[model.StudySpot](logger.With("table", "studyspots")),
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Users returns the gateway over the users table.
func (db *DB) Users() *UserStore {
	return db.users
}

// Spots returns the gateway over the studyspots table.
func (db *DB) Spots() *SpotStore {
	return db.spots
}

// Close shuts down the watch hubs and the connection pool. Always defer it
// next to New so the WAL is flushed and the file lock released on exit.
func (db *DB) Close() error {
	db.users.watch.close()
	db.spots.watch.close()
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every start; schema evolution is full replacement, there is no
// incremental migration history here.
//
// contacts and favorite_spot_ids hold JSON array text ('[]' when empty).
// An earlier design used comma-joined strings, which corrupts any value
// containing a comma — JSON text removes that hazard for the price of a
// marshal on each write.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			email             TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			password          TEXT NOT NULL,
			location          TEXT NOT NULL DEFAULT '',
			profile_image_url TEXT NOT NULL DEFAULT '',
			contacts          TEXT NOT NULL DEFAULT '[]',
			favorite_spot_ids TEXT NOT NULL DEFAULT '[]',
			version           INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS studyspots (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			location              TEXT NOT NULL,
			is_group_work_allowed INTEGER NOT NULL DEFAULT 0,
			is_free               INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating studyspots table: %w", err)
	}

	return nil
}
