package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/contract/internal/model"
)

// HasMigration reports whether a tracking row exists for the unit.
// Any row counts: a unit with a recorded status is not attempted again.
func (s *Store) HasMigration(ctx context.Context, filename string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM migrations WHERE filename = ?
	`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %q: %w", filename, err)
	}
	return count > 0, nil
}

// WriteMigration records the outcome of a migration unit.
//
// This is a plain INSERT: recording the same filename twice without a reset
// in between is a primary key violation, not a silent overwrite.
func (s *Store) WriteMigration(ctx context.Context, rec model.MigrationRecord) error {
	var errText sql.NullString
	if rec.Error != nil {
		errText = sql.NullString{String: *rec.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migrations (filename, applied_at, status, error, duration, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.Filename,
		rec.AppliedAt.UTC(),
		string(rec.Status),
		errText,
		rec.Duration,
		rec.RunID,
	)
	if err != nil {
		return fmt.Errorf("write migration %q: %w", rec.Filename, err)
	}
	return nil
}

// ReadMigration retrieves a single tracking row.
// Returns an error wrapping ErrNotFound if the unit has no row.
func (s *Store) ReadMigration(ctx context.Context, filename string) (model.MigrationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT filename, applied_at, status, error, duration, run_id
		FROM migrations
		WHERE filename = ?
	`, filename)

	rec, err := scanMigration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MigrationRecord{}, fmt.Errorf("read migration %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return model.MigrationRecord{}, fmt.Errorf("read migration %q: %w", filename, err)
	}
	return rec, nil
}

// ReadMigrations returns all tracking rows ordered by applied_at, filename.
func (s *Store) ReadMigrations(ctx context.Context) ([]model.MigrationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, applied_at, status, error, duration, run_id
		FROM migrations
		ORDER BY applied_at ASC, filename COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	recs := []model.MigrationRecord{}
	for rows.Next() {
		rec, err := scanMigration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return recs, nil
}

// DeleteMigrations removes the tracking rows for the given units so that a
// later apply attempts them again. Schema and data changes the units made
// are left in place. Returns the number of rows deleted.
func (s *Store) DeleteMigrations(ctx context.Context, filenames ...string) (int64, error) {
	if len(filenames) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filenames)), ",")
	args := make([]any, len(filenames))
	for i, name := range filenames {
		args[i] = name
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM migrations WHERE filename IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("delete migrations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete migrations: rows affected: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMigration(row rowScanner) (model.MigrationRecord, error) {
	var rec model.MigrationRecord
	var appliedAt, status string
	var errText sql.NullString
	var duration sql.NullInt64

	// applied_at is scanned as text: tables created by the previous tool
	// declare it TEXT, so the driver hands back a string rather than a time.
	if err := row.Scan(&rec.Filename, &appliedAt, &status, &errText, &duration, &rec.RunID); err != nil {
		return model.MigrationRecord{}, err
	}

	ts, err := parseTimestamp(appliedAt)
	if err != nil {
		return model.MigrationRecord{}, fmt.Errorf("migration %q: %w", rec.Filename, err)
	}
	rec.AppliedAt = ts
	rec.Status = model.MigrationStatus(status)
	if errText.Valid {
		msg := errText.String
		rec.Error = &msg
	}
	rec.Duration = duration.Int64
	return rec, nil
}

// parseTimestamp accepts the layouts the sqlite driver writes and reads,
// plus RFC 3339 as produced when a TIMESTAMP column is scanned into a string.
func parseTimestamp(s string) (time.Time, error) {
	trimmed := strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if ts, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
