package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// Tx is a store transaction handed to InTx callbacks.
// All writes made through it commit or roll back together.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a database transaction.
//
// If fn returns an error (or panics) the transaction is rolled back and
// every write made through the Tx is undone, including balance updates that
// fn already issued. The error from fn is returned unchanged so callers can
// classify it with errors.As.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Exec executes a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Query executes a query inside the transaction.
// Callers are responsible for closing the returned rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRow executes a single-row query inside the transaction.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// TableExists reports whether a table with the given name exists.
func (t *Tx) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, t.tx, name)
}

// TableExists reports whether a table with the given name exists.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, s.db, name)
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = ?
	`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %q: %w", name, err)
	}
	return count > 0, nil
}

// beginStmt matches a BEGIN [DEFERRED|IMMEDIATE|EXCLUSIVE] [TRANSACTION]
// statement at the start of a line. A trigger body's BEGIN is followed by
// statements, not a semicolon, so it does not match.
var beginStmt = regexp.MustCompile(`(?im)^\s*BEGIN(\s+(DEFERRED|IMMEDIATE|EXCLUSIVE))?(\s+TRANSACTION)?\s*;`)

// ExecScript runs a multi-statement SQL script as one batch in its own
// transaction. A failing statement rolls back the whole script.
//
// A script that opens its own transaction with BEGIN runs as written on a
// dedicated connection; if it fails part way, any transaction it left open
// is rolled back.
func (s *Store) ExecScript(ctx context.Context, script string) error {
	if beginStmt.MatchString(script) {
		return s.execSelfManaged(ctx, script)
	}
	return s.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("exec script: %w", err)
		}
		return nil
	})
}

func (s *Store) execSelfManaged(ctx context.Context, script string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("exec script: acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, script); err != nil {
		// Errors with "no transaction is active" if nothing was begun.
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return fmt.Errorf("exec script: %w", err)
	}
	return nil
}
