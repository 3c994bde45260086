// Package sqlite provides SQLite-based persistent storage for Stride.
// Uses WAL mode for concurrent reads and immediate-mode transactions so that
// every write path takes the database write lock before it reads.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at dir/stride.db.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "stride.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// SetClock overrides the wall clock used for row timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// One profile per user; totals are a cache of the ledger below.
		`CREATE TABLE IF NOT EXISTS profiles (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL UNIQUE,
			total_points       INTEGER NOT NULL DEFAULT 0,
			level              INTEGER NOT NULL DEFAULT 1,
			current_streak     INTEGER NOT NULL DEFAULT 0,
			longest_streak     INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_total ON profiles(total_points DESC)`,

		// Append-only point ledger
		`CREATE TABLE IF NOT EXISTS point_transactions (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			id                TEXT NOT NULL UNIQUE,
			user_id           TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
			points            INTEGER NOT NULL,
			type              TEXT NOT NULL,
			reference_id      TEXT,
			reference_type    TEXT,
			streak_multiplier REAL NOT NULL DEFAULT 1.0,
			description       TEXT NOT NULL,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user_created ON point_transactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user_type ON point_transactions(user_id, type)`,

		// Achievement catalog, seeded once
		`CREATE TABLE IF NOT EXISTS achievements (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL UNIQUE,
			description      TEXT NOT NULL,
			points           INTEGER NOT NULL DEFAULT 0,
			icon             TEXT NOT NULL DEFAULT '',
			achievement_type TEXT NOT NULL,
			required_count   INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_achievements (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			user_id        TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
			achievement_id TEXT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
			unlocked_at    INTEGER NOT NULL,
			UNIQUE (user_id, achievement_id)
		)`,

		// Notification log (policy: per-user daily cap, quiet hours)
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// withTx runs fn inside a write transaction, committing on success.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
