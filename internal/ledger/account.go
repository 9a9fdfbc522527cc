package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/roach88/contract/internal/model"
	"github.com/roach88/contract/internal/store"
)

// Outcome is the result of a deposit or withdrawal request.
type Outcome string

const (
	// OutcomeApplied means the balance changed and a transaction was logged.
	OutcomeApplied Outcome = "applied"

	// OutcomeNoOp means the request was invalid (e.g. zero amount) and nothing changed.
	OutcomeNoOp Outcome = "noop"

	// OutcomeRejected means a business rule refused the request and nothing changed.
	OutcomeRejected Outcome = "rejected"
)

// Receipt reports what a deposit or withdrawal did.
type Receipt struct {
	Outcome     Outcome            `json:"outcome"`
	Kind        model.TxKind       `json:"kind"`
	Amount      uint64             `json:"amount"`
	Balance     uint64             `json:"balance"` // Committed balance after the request
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Reason      *Error             `json:"-"` // Set for OutcomeNoOp and OutcomeRejected
}

// Option configures an Account.
type Option func(*Account)

// WithClock sets the clock used to timestamp transactions.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Account) { a.logger = logger }
}

// Account is a loaded ledger account.
//
// The in-memory state only changes after a store transaction commits, and is
// reloaded from the store after any failed mutation.
type Account struct {
	st     *store.Store
	log    *Log
	now    func() time.Time
	logger *slog.Logger
	state  model.Account
}

// LoadOrCreate loads the account for owner, creating it with a zero balance
// if it does not exist. An existing row's owner and balance are never
// overwritten, so calling it repeatedly is safe.
func LoadOrCreate(ctx context.Context, st *store.Store, owner string, opts ...Option) (*Account, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, newValidationError("", "owner must not be empty")
	}
	owner = model.NormalizeOwner(owner)
	id := model.AccountID(owner)

	a := &Account{
		st:     st,
		log:    NewLog(st),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}

	var created bool
	err := st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		created, err = tx.InsertAccount(ctx, model.Account{ID: id, Owner: owner})
		if err != nil {
			return err
		}
		a.state, err = tx.ReadAccount(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// The insert was ignored because another row already holds the owner.
			return &Error{
				Code:      ErrCodeIntegrity,
				Message:   fmt.Sprintf("owner %q is held by an account with a different id", owner),
				AccountID: id,
				Err:       err,
			}
		}
		return err
	})
	if err != nil {
		return nil, classify(err, id, "load account")
	}

	if a.state.Owner != owner {
		return nil, &Error{
			Code:      ErrCodeIntegrity,
			Message:   fmt.Sprintf("account id collision: stored owner %q, requested %q", a.state.Owner, owner),
			AccountID: id,
		}
	}

	a.logger.Debug("account loaded", "account", id, "owner", owner, "created", created, "balance", a.state.Balance)
	return a, nil
}

// ID returns the content-addressed account ID.
func (a *Account) ID() string { return a.state.ID }

// Owner returns the owner name.
func (a *Account) Owner() string { return a.state.Owner }

// Balance returns the last committed balance.
func (a *Account) Balance() uint64 { return a.state.Balance }

// Snapshot returns a copy of the account's committed state.
func (a *Account) Snapshot() model.Account { return a.state }

// Status returns the owner and the last committed balance. It does no I/O.
func (a *Account) Status() (owner string, balance uint64) {
	return a.state.Owner, a.state.Balance
}

// Refresh reloads the account from the store.
func (a *Account) Refresh(ctx context.Context) error {
	acct, err := a.st.ReadAccount(ctx, a.state.ID)
	if err != nil {
		return classify(err, a.state.ID, "refresh account")
	}
	a.state = acct
	return nil
}

// Deposit adds amount to the balance and logs a deposit transaction.
// A zero amount is a no-op reported on the receipt.
func (a *Account) Deposit(ctx context.Context, amount uint64) (Receipt, error) {
	return a.mutate(ctx, model.TxDeposit, amount)
}

// Withdraw subtracts amount from the balance and logs a withdraw transaction.
// A zero amount is a no-op; an amount larger than the balance is rejected
// with an insufficient-funds reason. Neither is an error.
func (a *Account) Withdraw(ctx context.Context, amount uint64) (Receipt, error) {
	return a.mutate(ctx, model.TxWithdraw, amount)
}

// History returns up to limit of the account's most recent transactions,
// newest first. A limit <= 0 means DefaultHistoryLimit.
func (a *Account) History(ctx context.Context, limit int) ([]model.Transaction, error) {
	txs, err := a.log.Recent(ctx, a.state.ID, limit)
	if err != nil {
		return nil, classify(err, a.state.ID, "read history")
	}
	return txs, nil
}

func (a *Account) mutate(ctx context.Context, kind model.TxKind, amount uint64) (Receipt, error) {
	receipt := Receipt{Kind: kind, Amount: amount, Balance: a.state.Balance}

	if amount == 0 {
		receipt.Outcome = OutcomeNoOp
		receipt.Reason = newValidationError(a.state.ID, fmt.Sprintf("%s amount must be greater than zero", kind))
		a.logger.Info("ledger request ignored", "account", a.state.ID, "kind", kind, "reason", receipt.Reason.Message)
		return receipt, nil
	}

	err := a.st.InTx(ctx, func(tx *store.Tx) error {
		// Check against the stored balance, not the cached one.
		cur, err := tx.ReadAccount(ctx, a.state.ID)
		if err != nil {
			return err
		}
		receipt.Balance = cur.Balance

		next, reason := nextBalance(cur, kind, amount)
		if reason != nil {
			receipt.Reason = reason
			return nil // nothing written
		}

		if err := tx.UpdateBalance(ctx, cur.ID, next); err != nil {
			return err
		}
		// If the append fails, InTx rolls back the balance update above.
		entry, err := a.log.Append(ctx, tx, cur.ID, kind, amount, a.now())
		if err != nil {
			return err
		}

		receipt.Balance = next
		receipt.Transaction = &entry
		return nil
	})
	if err != nil {
		lerr := classify(err, a.state.ID, string(kind))
		a.logger.Error("ledger mutation failed", "account", a.state.ID, "kind", kind, "amount", amount, "error", lerr)
		if rerr := a.Refresh(ctx); rerr != nil {
			return Receipt{}, errors.Join(lerr, rerr)
		}
		return Receipt{}, lerr
	}

	a.state.Balance = receipt.Balance

	switch {
	case receipt.Reason == nil:
		receipt.Outcome = OutcomeApplied
		a.logger.Info("ledger mutation applied",
			"account", a.state.ID, "kind", kind, "amount", amount,
			"balance", receipt.Balance, "tx_id", receipt.Transaction.ID)
	case receipt.Reason.Code == ErrCodeInsufficientFunds:
		receipt.Outcome = OutcomeRejected
		a.logger.Info("ledger request rejected", "account", a.state.ID, "kind", kind, "reason", receipt.Reason.Message)
	default:
		receipt.Outcome = OutcomeNoOp
		a.logger.Info("ledger request ignored", "account", a.state.ID, "kind", kind, "reason", receipt.Reason.Message)
	}
	return receipt, nil
}

// nextBalance computes the balance after applying kind/amount, or the
// business-rule reason it cannot be applied.
func nextBalance(cur model.Account, kind model.TxKind, amount uint64) (uint64, *Error) {
	switch kind {
	case model.TxDeposit:
		if cur.Balance > math.MaxInt64 || amount > math.MaxInt64-cur.Balance {
			return 0, newValidationError(cur.ID, fmt.Sprintf("deposit of %d would overflow the balance", amount))
		}
		return cur.Balance + amount, nil
	case model.TxWithdraw:
		if cur.Balance < amount {
			return 0, newInsufficientFundsError(cur.ID, cur.Balance, amount)
		}
		return cur.Balance - amount, nil
	default:
		return 0, newValidationError(cur.ID, fmt.Sprintf("unknown transaction kind %q", kind))
	}
}
