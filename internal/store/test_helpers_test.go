package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/contract/internal/model"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAccount inserts an account for owner and returns it.
func createTestAccount(t *testing.T, s *Store, owner string, balance uint64) model.Account {
	t.Helper()
	acct := model.Account{ID: model.AccountID(owner), Owner: owner, Balance: balance}
	if _, err := s.InsertAccount(context.Background(), acct); err != nil {
		t.Fatalf("InsertAccount() failed: %v", err)
	}
	return acct
}

var testTime = time.Date(2024, 4, 14, 12, 0, 0, 0, time.UTC)

// originalMigrationsDDL is the tracking table the previous contract tool
// created: no run_id column and a TEXT applied_at.
const originalMigrationsDDL = `
	CREATE TABLE IF NOT EXISTS migrations (
		filename TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT,
		duration INTEGER
	)`

// seedOriginalMigrations writes a database at path holding the previous
// tool's migrations table with one successful row.
func seedOriginalMigrations(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(originalMigrationsDDL); err != nil {
		t.Fatalf("create migrations: %v", err)
	}
	_, err = db.Exec(`
		INSERT INTO migrations (filename, applied_at, status, duration)
		VALUES ('20240414_001_transactions_timestamp_index', '2024-04-14 09:30:00', 'success', 12)
	`)
	if err != nil {
		t.Fatalf("seed migrations: %v", err)
	}
}
