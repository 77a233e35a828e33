package repository

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/logging"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "guatepass.db"))
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUserRepo(t *testing.T) *UserRepo {
	t.Helper()
	return NewUserRepo(newTestDB(t), logging.Discard(), 3)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
