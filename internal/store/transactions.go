package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/contract/internal/model"
)

// AppendTransaction inserts an immutable transaction row and returns it with
// its assigned tx_id. There is no update or delete counterpart.
//
// Note: The account referenced by accountID must exist (foreign key constraint).
func (t *Tx) AppendTransaction(ctx context.Context, accountID string, kind model.TxKind, amount uint64, at time.Time) (model.Transaction, error) {
	if !kind.Valid() {
		return model.Transaction{}, fmt.Errorf("append transaction: unknown kind %q", kind)
	}

	at = at.UTC()
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (account_id, tx_type, amount, timestamp)
		VALUES (?, ?, ?, ?)
	`, accountID, string(kind), int64(amount), at)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.Transaction{}, fmt.Errorf("append transaction: last insert id: %w", err)
	}

	return model.Transaction{
		ID:        id,
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		Timestamp: at,
	}, nil
}

// ReadTransactions returns up to limit transactions for an account,
// most recent first (ORDER BY tx_id DESC).
//
// Returns an empty slice (not nil) if the account has no transactions.
func (s *Store) ReadTransactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, account_id, tx_type, amount, timestamp
		FROM transactions
		WHERE account_id = ?
		ORDER BY tx_id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var tx model.Transaction
		var kind string
		var amount int64
		if err := rows.Scan(&tx.ID, &tx.AccountID, &kind, &amount, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Kind, err = model.ParseTxKind(kind); err != nil {
			return nil, fmt.Errorf("scan transaction %d: %w", tx.ID, err)
		}
		if amount < 0 {
			return nil, fmt.Errorf("scan transaction %d: negative amount %d", tx.ID, amount)
		}
		tx.Amount = uint64(amount)
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

// CountTransactions returns the number of transaction rows for an account.
func (s *Store) CountTransactions(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE account_id = ?
	`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
