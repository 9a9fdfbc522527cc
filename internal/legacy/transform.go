package legacy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/contract/internal/ledger"
	"github.com/roach88/contract/internal/model"
	"github.com/roach88/contract/internal/store"
)

// HandlerKey is the registry key the migration manifest uses for the transform.
const HandlerKey = "legacy_rekey_v1"

// Legacy table names.
const (
	ContractTable     = "old_contract"
	TransactionsTable = "old_transactions"
)

// Stats summarizes a transform run.
type Stats struct {
	Accounts     int  `json:"accounts"`     // Account rows inserted (existing ids are left alone)
	Transactions int  `json:"transactions"` // Transaction rows appended
	Clamped      int  `json:"clamped"`      // Negative balances or amounts raised to zero
	Skipped      bool `json:"skipped"`      // Legacy tables absent, nothing done
}

// Transformer carries legacy rows into the current schema.
type Transformer struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithClock sets the clock used to timestamp carried-over transactions.
// Legacy rows carry no timestamp of their own.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// New creates a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type legacyAccount struct {
	id      int64
	owner   string
	balance int64
}

type legacyTransaction struct {
	contractID int64
	kind       string
	amount     int64
}

// Transform copies legacy accounts and transactions into the current tables.
//
// If either legacy table is missing the call succeeds without changes.
// Account ids are derived from the owner, and an account whose id already
// exists keeps its stored owner and balance. Negative balances and amounts
// are clamped to zero. A transaction whose contract_id has no legacy owner,
// or whose kind is not recognised, fails the whole transform with an
// integrity error and nothing is written.
func (t *Transformer) Transform(ctx context.Context, st *store.Store) (Stats, error) {
	var stats Stats

	err := st.InTx(ctx, func(tx *store.Tx) error {
		for _, table := range []string{ContractTable, TransactionsTable} {
			ok, err := tx.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !ok {
				t.logger.Warn("legacy table missing, nothing to transform", "table", table)
				stats.Skipped = true
				return nil
			}
		}

		accounts, err := readAccounts(ctx, tx)
		if err != nil {
			return err
		}
		owners := make(map[int64]string, len(accounts))
		for _, la := range accounts {
			owner := model.NormalizeOwner(la.owner)
			owners[la.id] = owner

			balance := la.balance
			if balance < 0 {
				t.logger.Debug("clamping negative legacy balance", "legacy_id", la.id, "balance", balance)
				balance = 0
				stats.Clamped++
			}

			inserted, err := tx.InsertAccount(ctx, model.Account{
				ID:      model.AccountID(owner),
				Owner:   owner,
				Balance: uint64(balance),
			})
			if err != nil {
				return err
			}
			if inserted {
				stats.Accounts++
			}
		}

		txs, err := readTransactions(ctx, tx)
		if err != nil {
			return err
		}
		for _, lt := range txs {
			owner, ok := owners[lt.contractID]
			if !ok {
				return &ledger.Error{
					Code:    ledger.ErrCodeIntegrity,
					Message: fmt.Sprintf("legacy transaction references unknown contract %d", lt.contractID),
				}
			}
			kind, ok := mapKind(lt.kind)
			if !ok {
				return &ledger.Error{
					Code:    ledger.ErrCodeIntegrity,
					Message: fmt.Sprintf("legacy transaction for contract %d has unknown type %q", lt.contractID, lt.kind),
				}
			}

			amount := lt.amount
			if amount < 0 {
				t.logger.Debug("clamping negative legacy amount", "legacy_id", lt.contractID, "amount", amount)
				amount = 0
				stats.Clamped++
			}

			id := model.AccountID(owner)
			if _, err := tx.AppendTransaction(ctx, id, kind, uint64(amount), t.now()); err != nil {
				if store.IsConstraint(err) {
					return &ledger.Error{
						Code:      ledger.ErrCodeIntegrity,
						Message:   fmt.Sprintf("no account row for legacy owner %q", owner),
						AccountID: id,
						Err:       err,
					}
				}
				return err
			}
			stats.Transactions++
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("legacy transform: %w", err)
	}

	t.logger.Info("legacy transform complete",
		"accounts", stats.Accounts,
		"transactions", stats.Transactions,
		"clamped", stats.Clamped,
		"skipped", stats.Skipped)
	return stats, nil
}

// Handler adapts the transform to the migration registry's handler signature.
func (t *Transformer) Handler(ctx context.Context, st *store.Store) error {
	_, err := t.Transform(ctx, st)
	return err
}

// mapKind maps legacy tx_type values, including the prototype's spellings.
func mapKind(s string) (model.TxKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit", "initial deposit":
		return model.TxDeposit, true
	case "withdraw", "withdrawal":
		return model.TxWithdraw, true
	}
	return "", false
}

// readAccounts loads old_contract fully before any write so no cursor is
// open while rows are inserted on the same connection.
func readAccounts(ctx context.Context, tx *store.Tx) ([]legacyAccount, error) {
	rows, err := tx.Query(ctx, `SELECT id, owner, balance FROM old_contract ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ContractTable, err)
	}
	defer rows.Close()

	var out []legacyAccount
	for rows.Next() {
		var la legacyAccount
		if err := rows.Scan(&la.id, &la.owner, &la.balance); err != nil {
			return nil, fmt.Errorf("scan %s: %w", ContractTable, err)
		}
		out = append(out, la)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", ContractTable, err)
	}
	return out, nil
}

func readTransactions(ctx context.Context, tx *store.Tx) ([]legacyTransaction, error) {
	rows, err := tx.Query(ctx, `SELECT contract_id, tx_type, amount FROM old_transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", TransactionsTable, err)
	}
	defer rows.Close()

	var out []legacyTransaction
	for rows.Next() {
		var lt legacyTransaction
		if err := rows.Scan(&lt.contractID, &lt.kind, &lt.amount); err != nil {
			return nil, fmt.Errorf("scan %s: %w", TransactionsTable, err)
		}
		out = append(out, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", TransactionsTable, err)
	}
	return out, nil
}
