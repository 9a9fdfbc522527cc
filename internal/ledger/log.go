package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/contract/internal/model"
	"github.com/roach88/contract/internal/store"
)

// DefaultHistoryLimit is the number of transactions History returns when no
// positive limit is given.
const DefaultHistoryLimit = 5

// Log is the append-only transaction log of the ledger.
// Rows are only ever appended inside a store transaction; there is no update
// or delete.
type Log struct {
	st *store.Store
}

// NewLog creates a transaction log over the store.
func NewLog(st *store.Store) *Log {
	return &Log{st: st}
}

// Append records a transaction inside tx. The caller owns tx, so a failed
// append rolls back together with whatever else tx wrote.
func (l *Log) Append(ctx context.Context, tx *store.Tx, accountID string, kind model.TxKind, amount uint64, at time.Time) (model.Transaction, error) {
	if accountID == "" {
		return model.Transaction{}, fmt.Errorf("append transaction: empty account id")
	}
	return tx.AppendTransaction(ctx, accountID, kind, amount, at)
}

// Recent returns the most recent transactions for an account, newest first.
// A limit <= 0 means DefaultHistoryLimit.
func (l *Log) Recent(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.st.ReadTransactions(ctx, accountID, limit)
}
