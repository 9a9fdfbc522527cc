package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/contract/internal/ledger"
	"github.com/roach88/contract/internal/migrate"
	"github.com/roach88/contract/internal/store"
	"github.com/roach88/contract/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenario steps with a deterministic clock and run ids.
type Harness struct {
	store  *store.Store
	engine *migrate.Engine
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Run setup SQL
// 3. Execute steps, checking expect clauses
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if scenario.SetupSQL != "" {
		if err := st.ExecScript(ctx, scenario.SetupSQL); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}

	manifest, err := migrate.BuiltinManifest()
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store: st,
		engine: migrate.NewEngine(st, manifest, migrate.DefaultRegistry(logger, clock.Now),
			migrate.WithClock(clock.Now),
			migrate.WithRunID(testutil.NewSequentialIDs("run").Generate),
			migrate.WithLogger(logger)),
		clock:  clock,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event := result.AddTrace(h.executeStep(ctx, step))
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, event) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, step.Action, msg))
			}
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one step. Failures are recorded on the event, not returned.
func (h *Harness) executeStep(ctx context.Context, step Step) TraceEvent {
	event := TraceEvent{Action: step.Action}

	switch step.Action {
	case ActionMigrate:
		var report migrate.Report
		var err error
		if len(step.Units) > 0 {
			report, err = h.engine.ApplyNamed(ctx, step.Units...)
		} else {
			report, err = h.engine.Apply(ctx)
		}
		if err != nil {
			event.Error = migrateErrorCode(err)
			return event
		}
		event.Units = make(map[string]string, len(report.Results))
		for _, res := range report.Results {
			status := string(res.Status)
			if res.AlreadyApplied {
				status = "recorded:" + status
			}
			event.Units[res.Unit] = status
		}
		return event

	case ActionReset:
		n, err := h.engine.Reset(ctx, step.Units...)
		if err != nil {
			event.Error = migrateErrorCode(err)
			return event
		}
		event.Count = &n
		return event
	}

	event.Owner = ownerOrDefault(step.Owner)
	acct, err := ledger.LoadOrCreate(ctx, h.store, event.Owner,
		ledger.WithClock(h.clock.Now),
		ledger.WithLogger(h.logger))
	if err != nil {
		event.Error = ledgerErrorCode(err)
		return event
	}

	switch step.Action {
	case ActionStatus:
		_, balance := acct.Status()
		event.Balance = &balance

	case ActionDeposit, ActionWithdraw:
		event.Amount = step.Amount
		var receipt ledger.Receipt
		if step.Action == ActionDeposit {
			receipt, err = acct.Deposit(ctx, step.Amount)
		} else {
			receipt, err = acct.Withdraw(ctx, step.Amount)
		}
		if err != nil {
			event.Error = ledgerErrorCode(err)
			return event
		}
		event.Outcome = string(receipt.Outcome)
		if receipt.Reason != nil {
			event.Reason = string(receipt.Reason.Code)
		}
		balance := receipt.Balance
		event.Balance = &balance

	case ActionHistory:
		txs, err := acct.History(ctx, step.Limit)
		if err != nil {
			event.Error = ledgerErrorCode(err)
			return event
		}
		n := len(txs)
		event.Count = &n
	}

	return event
}

func ownerOrDefault(owner string) string {
	if owner == "" {
		return DefaultOwner
	}
	return owner
}

func ledgerErrorCode(err error) string {
	var le *ledger.Error
	if errors.As(err, &le) {
		return string(le.Code)
	}
	return "UNKNOWN"
}

func migrateErrorCode(err error) string {
	if errors.Is(err, migrate.ErrUnknownUnit) {
		return "UNKNOWN_UNIT"
	}
	return "TRACKING"
}

// checkExpect compares an event against an expect clause.
func checkExpect(exp *Expect, event TraceEvent) []string {
	var errs []string
	if exp.Outcome != "" && exp.Outcome != event.Outcome {
		errs = append(errs, fmt.Sprintf("outcome: expected %q, got %q", exp.Outcome, event.Outcome))
	}
	if exp.Reason != "" && exp.Reason != event.Reason {
		errs = append(errs, fmt.Sprintf("reason: expected %q, got %q", exp.Reason, event.Reason))
	}
	if exp.Error != event.Error {
		errs = append(errs, fmt.Sprintf("error: expected %q, got %q", exp.Error, event.Error))
	}
	if exp.Balance != nil && (event.Balance == nil || *event.Balance != *exp.Balance) {
		errs = append(errs, fmt.Sprintf("balance: expected %d, got %s", *exp.Balance, formatUintPtr(event.Balance)))
	}
	if exp.Count != nil && (event.Count == nil || *event.Count != *exp.Count) {
		errs = append(errs, fmt.Sprintf("count: expected %d, got %s", *exp.Count, formatIntPtr(event.Count)))
	}
	return errs
}

func formatUintPtr(v *uint64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}
