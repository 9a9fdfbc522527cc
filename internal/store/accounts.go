package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/contract/internal/model"
)

// InsertAccount inserts an account row if no row with its ID exists.
// Uses ON CONFLICT DO NOTHING: an existing row's owner and balance are never
// overwritten. Reports whether a new row was inserted.
func (s *Store) InsertAccount(ctx context.Context, acct model.Account) (bool, error) {
	return insertAccount(ctx, s.db, acct)
}

// InsertAccount is the transactional variant of Store.InsertAccount.
func (t *Tx) InsertAccount(ctx context.Context, acct model.Account) (bool, error) {
	return insertAccount(ctx, t.tx, acct)
}

func insertAccount(ctx context.Context, q querier, acct model.Account) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO accounts (id, owner, balance)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, acct.ID, acct.Owner, int64(acct.Balance))
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert account: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReadAccount retrieves an account by ID.
// Returns an error wrapping ErrNotFound if no such account exists.
func (s *Store) ReadAccount(ctx context.Context, id string) (model.Account, error) {
	return readAccount(ctx, s.db, id)
}

// ReadAccount is the transactional variant of Store.ReadAccount.
func (t *Tx) ReadAccount(ctx context.Context, id string) (model.Account, error) {
	return readAccount(ctx, t.tx, id)
}

func readAccount(ctx context.Context, q querier, id string) (model.Account, error) {
	var acct model.Account
	var balance int64
	err := q.QueryRowContext(ctx, `
		SELECT id, owner, balance FROM accounts WHERE id = ?
	`, id).Scan(&acct.ID, &acct.Owner, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("read account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("read account %s: %w", id, err)
	}
	if balance < 0 {
		return model.Account{}, fmt.Errorf("read account %s: negative balance %d", id, balance)
	}
	acct.Balance = uint64(balance)
	return acct, nil
}

// UpdateBalance sets an account's balance inside a transaction.
// Returns an error wrapping ErrNotFound if the account row is missing.
func (t *Tx) UpdateBalance(ctx context.Context, id string, balance uint64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET balance = ? WHERE id = ?
	`, int64(balance), id)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update balance %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountAccounts returns the number of account rows.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}
