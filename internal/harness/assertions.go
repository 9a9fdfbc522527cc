package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/contract/internal/ledger"
	"github.com/roach88/contract/internal/model"
	"github.com/roach88/contract/internal/store"
)

// AssertionContext carries what state assertions need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Action, event.Owner)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalBalance:
			err = assertFinalBalance(actx, a)
		case AssertHistory:
			err = assertHistory(actx, a)
		case AssertMigrationStatus:
			err = assertMigrationStatus(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains checks the trace has an event for the action, and for
// the owner if one is given.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Action == assertion.Action && (assertion.Owner == "" || event.Owner == assertion.Owner) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s for owner %q", assertion.Action, assertion.Owner),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Actions) && event.Action == assertion.Actions[next] {
			next++
		}
	}
	if next == len(assertion.Actions) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
		Actual:   fmt.Sprintf("matched only %v", assertion.Actions[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalBalance reads the owner's row straight from the store.
func assertFinalBalance(actx *AssertionContext, assertion Assertion) error {
	owner := ownerOrDefault(assertion.Owner)
	acct, err := actx.Store.ReadAccount(actx.Ctx, model.AccountID(owner))
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalBalance,
			Expected: fmt.Sprintf("account for %s", owner),
			Actual:   err.Error(),
		}
	}
	if acct.Balance != assertion.Balance {
		return &AssertionError{
			Type:     AssertFinalBalance,
			Expected: fmt.Sprintf("balance %d for %s", assertion.Balance, owner),
			Actual:   fmt.Sprintf("balance %d", acct.Balance),
		}
	}
	return nil
}

// assertHistory compares the owner's history, newest first. The assertion's
// length is used as the limit.
func assertHistory(actx *AssertionContext, assertion Assertion) error {
	owner := ownerOrDefault(assertion.Owner)
	limit := len(assertion.Kinds) + 1 // one extra to catch unexpected rows
	txs, err := ledger.NewLog(actx.Store).Recent(actx.Ctx, model.AccountID(owner), limit)
	if err != nil {
		return fmt.Errorf("history assertion: %w", err)
	}

	got := make([]string, len(txs))
	for i, tx := range txs {
		got[i] = fmt.Sprintf("%s %d", tx.Kind, tx.Amount)
	}
	want := make([]string, len(assertion.Kinds))
	for i := range assertion.Kinds {
		want[i] = fmt.Sprintf("%s %d", assertion.Kinds[i], assertion.Amounts[i])
	}

	if strings.Join(got, ", ") != strings.Join(want, ", ") {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("[%s] for %s", strings.Join(want, ", "), owner),
			Actual:   fmt.Sprintf("[%s]", strings.Join(got, ", ")),
		}
	}
	return nil
}

// assertMigrationStatus checks a unit's tracking row.
func assertMigrationStatus(actx *AssertionContext, assertion Assertion) error {
	rec, err := actx.Store.ReadMigration(actx.Ctx, assertion.Unit)
	actual := ""
	switch {
	case errors.Is(err, store.ErrNotFound):
		actual = "no record"
	case err != nil:
		return fmt.Errorf("migration_status assertion: %w", err)
	default:
		actual = string(rec.Status)
	}

	if actual != assertion.Status {
		return &AssertionError{
			Type:     AssertMigrationStatus,
			Expected: fmt.Sprintf("%s is %s", assertion.Unit, assertion.Status),
			Actual:   actual,
		}
	}
	return nil
}
