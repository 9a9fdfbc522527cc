package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Action: ActionDeposit, Owner: "alice"},
		{Seq: 2, Action: ActionWithdraw, Owner: "alice"},
		{Seq: 3, Action: ActionDeposit, Owner: "bob"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionDeposit, Owner: "bob"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionWithdraw}))

	err := assertTraceContains(trace, Assertion{Action: ActionWithdraw, Owner: "bob"})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionDeposit, ActionWithdraw}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionWithdraw, ActionDeposit}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionWithdraw, ActionWithdraw}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched only [withdraw]")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionDeposit, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionHistory, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: ActionDeposit, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestStateAssertionsFail(t *testing.T) {
	scenario := &Scenario{
		Name:        "state",
		Description: "state assertions that do not hold",
		Steps:       []Step{{Action: ActionDeposit, Amount: 10}},
		Assertions: []Assertion{
			{Type: AssertFinalBalance, Balance: 11},
			{Type: AssertFinalBalance, Owner: "nobody"},
			{Type: AssertHistory, Kinds: []string{"withdraw"}, Amounts: []uint64{10}},
			{Type: AssertMigrationStatus, Unit: "20240414_002_data_transform", Status: "success"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "balance 10")
	assert.Contains(t, result.Errors[1], "account for nobody")
	assert.Contains(t, result.Errors[2], "[deposit 10]")
	assert.Contains(t, result.Errors[3], "no record")
}
