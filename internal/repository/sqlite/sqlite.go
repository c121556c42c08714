// Package sqlite implements the repository interfaces on SQLite.
//
// It is the backend for local development (no Google project needed) and
// the one the repository tests run against with ":memory:".
//
// LAYOUT:
// The document model maps onto four tables. A stamp card is a header row in
// stamp_cards plus one row per booth in stamp_slots. Keeping slots as rows is
// what lets MarkBooth fill exactly one slot with a conditional UPDATE instead
// of rewriting the whole array, so two booths scanned at the same moment for
// the same registrant can't lose each other's write.
//
// Timestamps are stored as fixed-width RFC 3339 text in UTC so that string
// order is time order and values round-trip to the nanosecond.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// timeLayout is RFC 3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/stampcard.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
//
// foreign_keys and busy_timeout are connection-level pragmas, so they go in
// the DSN where the driver applies them to every pooled connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is its own empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a booth mark is being written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// nickname is NULL for webhook registrants; UNIQUE ignores NULLs, so the
	// constraint only binds the nickname flow.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			nickname        TEXT UNIQUE,
			email           TEXT NOT NULL DEFAULT '',
			name            TEXT NOT NULL DEFAULT '',
			source          TEXT NOT NULL DEFAULT '',
			form_id         TEXT NOT NULL DEFAULT '',
			submission_id   TEXT NOT NULL DEFAULT '',
			form_data       TEXT NOT NULL DEFAULT '',
			additional_data TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			last_active     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS stamp_cards (
			user_id      TEXT PRIMARY KEY REFERENCES users(id),
			created_at   TEXT NOT NULL,
			last_updated TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stamp_slots (
			user_id   TEXT NOT NULL REFERENCES stamp_cards(user_id),
			position  INTEGER NOT NULL,
			booth_id  TEXT NOT NULL,
			filled    INTEGER NOT NULL DEFAULT 0,
			filled_at TEXT,
			PRIMARY KEY (user_id, booth_id),
			UNIQUE (user_id, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating stamp tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			submission_id TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL DEFAULT '',
			source        TEXT NOT NULL DEFAULT '',
			received_at   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS store_probes (
			id         TEXT PRIMARY KEY,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating submissions table: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
