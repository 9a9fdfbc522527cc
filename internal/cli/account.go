package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/contract/internal/ledger"
	"github.com/roach88/contract/internal/model"
)

// AccountStatus is the JSON payload of the status command.
type AccountStatus struct {
	Owner     string `json:"owner"`
	AccountID string `json:"account_id"`
	Balance   uint64 `json:"balance"`
}

// MutationResult is the JSON payload of deposit and withdraw.
type MutationResult struct {
	Owner       string             `json:"owner"`
	AccountID   string             `json:"account_id"`
	Outcome     ledger.Outcome     `json:"outcome"`
	Kind        model.TxKind       `json:"kind"`
	Amount      uint64             `json:"amount"`
	Balance     uint64             `json:"balance"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Reason      *CLIError          `json:"reason,omitempty"`
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Owner        string              `json:"owner"`
	AccountID    string              `json:"account_id"`
	Transactions []model.Transaction `json:"transactions"`
}

// loadAccount opens the session and loads (or creates) the --owner account.
func loadAccount(opts *RootOptions, cmd *cobra.Command) (*session, *ledger.Account, error) {
	s, err := openSession(opts, cmd)
	if err != nil {
		return nil, nil, err
	}

	acct, err := ledger.LoadOrCreate(commandContext(cmd), s.st, opts.Owner,
		ledger.WithClock(s.now()),
		ledger.WithLogger(s.logger))
	if err != nil {
		s.Close()
		return nil, nil, reportLedgerError(s.out, "cannot load account", err)
	}
	return s, acct, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the owner's balance",
		Long: `Show the owner's account id and committed balance.
The account is created with a zero balance if it does not exist.

Example:
  contract status --owner alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	s, acct, err := loadAccount(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	owner, balance := acct.Status()
	if s.out.Format == "json" {
		return s.out.Success(AccountStatus{Owner: owner, AccountID: acct.ID(), Balance: balance})
	}

	fmt.Fprintf(s.out.Writer, "owner:   %s\n", owner)
	fmt.Fprintf(s.out.Writer, "account: %s\n", acct.ID())
	fmt.Fprintf(s.out.Writer, "balance: %d\n", balance)
	return nil
}

// MutationOptions holds flags for deposit and withdraw.
type MutationOptions struct {
	*RootOptions
	Amount uint64
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts, model.TxDeposit, "Add funds to the owner's balance",
		`Add --amount to the owner's balance and log a deposit transaction.
A zero amount changes nothing.

Example:
  contract deposit --owner alice --amount 100`)
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts, model.TxWithdraw, "Remove funds from the owner's balance",
		`Subtract --amount from the owner's balance and log a withdraw transaction.
A zero amount, or an amount larger than the balance, changes nothing and
still exits 0.

Example:
  contract withdraw --owner alice --amount 50`)
}

func newMutationCommand(rootOpts *RootOptions, kind model.TxKind, short, long string) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           string(kind),
		Short:         short,
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("amount") {
				return reportError(newFormatter(opts.RootOptions, cmd), ExitCommandError, ErrCodeFlags,
					"--amount is required", nil)
			}
			return runMutation(opts, kind, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Amount, "amount", 0, "amount in whole units (required)")

	return cmd
}

func runMutation(opts *MutationOptions, kind model.TxKind, cmd *cobra.Command) error {
	s, acct, err := loadAccount(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	var receipt ledger.Receipt
	if kind == model.TxDeposit {
		receipt, err = acct.Deposit(ctx, opts.Amount)
	} else {
		receipt, err = acct.Withdraw(ctx, opts.Amount)
	}
	if err != nil {
		return reportLedgerError(s.out, fmt.Sprintf("%s failed", kind), err)
	}

	if s.out.Format == "json" {
		result := MutationResult{
			Owner:       acct.Owner(),
			AccountID:   acct.ID(),
			Outcome:     receipt.Outcome,
			Kind:        receipt.Kind,
			Amount:      receipt.Amount,
			Balance:     receipt.Balance,
			Transaction: receipt.Transaction,
		}
		if receipt.Reason != nil {
			result.Reason = &CLIError{Code: string(receipt.Reason.Code), Message: receipt.Reason.Message}
		}
		return s.out.Success(result)
	}

	switch receipt.Outcome {
	case ledger.OutcomeApplied:
		s.out.Line(levelOK, "%s %d applied, balance %d (tx %d)",
			kind, receipt.Amount, receipt.Balance, receipt.Transaction.ID)
	case ledger.OutcomeRejected:
		s.out.Line(levelFail, "%s %d rejected: %s", kind, receipt.Amount, receipt.Reason.Message)
	default:
		s.out.Line(levelWarn, "%s ignored: %s", kind, receipt.Reason.Message)
	}
	return nil
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transactions",
		Long: `Show the owner's most recent transactions, newest first.

Example:
  contract history --owner alice --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.Limit = opts.Config.HistoryLimit
			}
			if opts.Limit <= 0 {
				return reportError(newFormatter(opts.RootOptions, cmd), ExitCommandError, ErrCodeFlags,
					fmt.Sprintf("--limit must be positive, got %d", opts.Limit), nil)
			}
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", ledger.DefaultHistoryLimit, "number of transactions to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	s, acct, err := loadAccount(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	txs, err := acct.History(commandContext(cmd), opts.Limit)
	if err != nil {
		return reportLedgerError(s.out, "cannot read history", err)
	}

	if s.out.Format == "json" {
		return s.out.Success(HistoryResult{Owner: acct.Owner(), AccountID: acct.ID(), Transactions: txs})
	}

	if len(txs) == 0 {
		fmt.Fprintf(s.out.Writer, "no transactions for %s\n", acct.Owner())
		return nil
	}
	for _, tx := range txs {
		fmt.Fprintf(s.out.Writer, "#%-4d %s  %-8s %d\n",
			tx.ID, tx.Timestamp.UTC().Format(time.RFC3339), tx.Kind, tx.Amount)
	}
	return nil
}
