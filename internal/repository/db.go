package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite has a single writer. One pooled connection keeps the pragmas
	// below in effect and lets ":memory:" databases share one schema.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			plate TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			user_type TEXT NOT NULL,
			has_tag INTEGER NOT NULL DEFAULT 0,
			tag_id TEXT,
			tag_status TEXT,
			balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			tag_created_at TEXT,
			tag_updated_at TEXT,
			tag_removed_at TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_tag ON users(tag_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			plate TEXT NOT NULL,
			toll_point_id TEXT NOT NULL,
			tag_id TEXT,
			tier INTEGER NOT NULL,
			base_fare_cents INTEGER NOT NULL,
			multiplier TEXT NOT NULL,
			final_fare_cents INTEGER NOT NULL,
			currency TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			crossed_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_plate_time ON transactions(plate, crossed_at)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			plate TEXT NOT NULL,
			toll_point_id TEXT NOT NULL,
			tier INTEGER NOT NULL,
			base_cents INTEGER NOT NULL,
			penalty_cents INTEGER NOT NULL,
			total_cents INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			concept TEXT NOT NULL,
			issued_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payer_name TEXT NOT NULL,
			payer_plate TEXT NOT NULL,
			payer_email TEXT NOT NULL,
			FOREIGN KEY (transaction_id) REFERENCES transactions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_plate_created ON invoices(plate, created_at)`,

		`CREATE TABLE IF NOT EXISTS balance_debits (
			reference TEXT PRIMARY KEY,
			plate TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			previous_cents INTEGER NOT NULL,
			new_cents INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	return nil
}

// Timestamps are stored as fixed-width UTC strings so that lexical order in
// SQLite matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return stmt[:i]
	}
	return stmt
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

const (
	DefaultLimit = 20
	MaxLimit     = 500
)
