package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contract/internal/model"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.False(t, os.IsNotExist(err), "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"accounts", "transactions", "migrations"} {
		exists, err := s.TableExists(context.Background(), table)
		require.NoError(t, err)
		assert.True(t, exists, "table %q missing after idempotent opens", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	exists, err := s.TableExists(context.Background(), "accounts")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestUpgradeToV1_AddsIndexToOldDatabase(t *testing.T) {
	s := createTestStore(t)
	db := s.DB()

	// Simulate a v0 database: drop the index and reset the version.
	_, err := db.Exec("DROP INDEX idx_transactions_account")
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)

	require.NoError(t, upgradeSchema(db))

	var name string
	err = db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_transactions_account'",
	).Scan(&name)
	require.NoError(t, err)
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestUpgradeToV2_AddsRunIDToOriginalMigrationsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "original.db")
	seedOriginalMigrations(t, path)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	assert.NoError(t, s.verifyPragma("user_version", "2"))

	rec, err := s.ReadMigration(ctx, "20240414_001_transactions_timestamp_index")
	require.NoError(t, err)
	assert.Equal(t, model.MigrationSuccess, rec.Status)
	assert.True(t, rec.AppliedAt.Equal(time.Date(2024, 4, 14, 9, 30, 0, 0, time.UTC)), "applied_at %v", rec.AppliedAt)
	assert.Equal(t, int64(12), rec.Duration)
	assert.Empty(t, rec.RunID)

	require.NoError(t, s.WriteMigration(ctx, model.MigrationRecord{
		Filename:  "20240414_002_data_transform",
		AppliedAt: testTime,
		Status:    model.MigrationSuccess,
		RunID:     "run-1",
	}))

	recs, err := s.ReadMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "20240414_002_data_transform", recs[1].Filename)
	assert.True(t, recs[1].AppliedAt.Equal(testTime))
	assert.Equal(t, "run-1", recs[1].RunID)
}

func TestUpgradeToV2_KeepsExistingRunID(t *testing.T) {
	s := createTestStore(t)
	db := s.DB()

	_, err := db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, upgradeSchema(db))

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('migrations') WHERE name = 'run_id'",
	).Scan(&count))
	assert.Equal(t, 1, count)
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 4, 14, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
	}{
		{"sqlite default", "2024-04-14 09:30:00"},
		{"driver format", "2024-04-14 09:30:00+00:00"},
		{"rfc3339 utc", "2024-04-14T09:30:00Z"},
		{"rfc3339 offset", "2024-04-14T11:30:00+02:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %v", got)
		})
	}

	_, err := parseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestInTx_RollsBackOnCallbackError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	acct := createTestAccount(t, s, "alice", 10)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.UpdateBalance(ctx, acct.ID, 99))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.ReadAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Balance, "balance write must be rolled back")
}

func TestInTx_MockRollbackOnFailedAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := New(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET balance`).
		WithArgs(int64(150), "acct").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = s.InTx(ctx, func(tx *Tx) error {
		if err := tx.UpdateBalance(ctx, "acct", 150); err != nil {
			return err
		}
		_, err := tx.AppendTransaction(ctx, "acct", "deposit", 50, testTime)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err = New(db).InTx(context.Background(), func(*Tx) error { return nil })
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConstraint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.AppendTransaction(ctx, "no-such-account", "deposit", 1, testTime)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsConstraint(err), "foreign key violation is a constraint error: %v", err)
	assert.False(t, IsConstraint(errors.New("plain")))
}

func TestExecScript(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.ExecScript(ctx, `
		CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
		INSERT INTO notes (body) VALUES ('a');
		INSERT INTO notes (body) VALUES ('b');
	`)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM notes").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestExecScript_FailureRollsBackWholeBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.ExecScript(ctx, `
		CREATE TABLE half (id INTEGER PRIMARY KEY);
		INSERT INTO missing_table VALUES (1);
	`)
	require.Error(t, err)

	exists, err := s.TableExists(ctx, "half")
	require.NoError(t, err)
	assert.False(t, exists, "failed script must leave no partial changes")
}

func TestExecScript_OwnTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.ExecScript(ctx, `
		BEGIN TRANSACTION;
		CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);
		INSERT INTO notes (body) VALUES ('a');
		COMMIT;
	`)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM notes").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestExecScript_OwnTransactionFailureRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.ExecScript(ctx, `
		BEGIN;
		CREATE TABLE half (id INTEGER PRIMARY KEY);
		INSERT INTO missing_table VALUES (1);
		COMMIT;
	`)
	require.Error(t, err)

	exists, err := s.TableExists(ctx, "half")
	require.NoError(t, err)
	assert.False(t, exists)

	// The connection is usable for ordinary transactions again.
	require.NoError(t, s.ExecScript(ctx, "CREATE TABLE after (id INTEGER);"))
}

func TestExecScript_TriggerBodyIsNotOwnTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.ExecScript(ctx, `
		CREATE TABLE audit (owner TEXT);
		CREATE TRIGGER accounts_audit AFTER INSERT ON accounts
		BEGIN
			INSERT INTO audit (owner) VALUES (NEW.owner);
		END;
	`)
	require.NoError(t, err)
	assert.False(t, beginStmt.MatchString("CREATE TRIGGER t AFTER INSERT ON x\nBEGIN\n  SELECT 1;\nEND;"))

	createTestAccount(t, s, "alice", 0)
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM audit").Scan(&n))
	assert.Equal(t, 1, n)
}
