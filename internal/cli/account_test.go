package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contract/internal/store"
)

func TestLedgerCommands_EndToEnd(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.run("status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "owner:   alice")
	assert.Contains(t, stdout, "balance: 0")

	stdout, _, err = env.run("deposit", "--amount", "100")
	require.NoError(t, err)
	assert.Equal(t, "deposit 100 applied, balance 100 (tx 1)\n", stdout)

	stdout, _, err = env.run("withdraw", "--amount", "150")
	require.NoError(t, err, "insufficient funds is not a failure")
	assert.Equal(t, "withdraw 150 rejected: balance 100 is less than requested 150\n", stdout)

	stdout, _, err = env.run("withdraw", "--amount", "50")
	require.NoError(t, err)
	assert.Equal(t, "withdraw 50 applied, balance 50 (tx 2)\n", stdout)

	stdout, _, err = env.run("status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "balance: 50")

	stdout, _, err = env.run("history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "#2    2024-04-14T09:00:01Z  withdraw 50", lines[0])
	assert.Equal(t, "#1    2024-04-14T09:00:00Z  deposit  100", lines[1])
}

func TestDeposit_ZeroAmount(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.run("deposit", "--amount", "0")
	require.NoError(t, err)
	assert.Equal(t, "deposit ignored: deposit amount must be greater than zero\n", stdout)
}

func TestDeposit_MissingAmount(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.run("deposit")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeFlags)
}

func TestDeposit_JSON(t *testing.T) {
	env := newCLIEnv(t)

	resp, err := env.runJSON("deposit", "--amount", "25")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["status"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "applied", data["outcome"])
	assert.Equal(t, float64(25), data["balance"])
	assert.Equal(t, "alice", data["owner"])
	assert.NotNil(t, data["transaction"])

	resp, err = env.runJSON("withdraw", "--amount", "30")
	require.NoError(t, err)
	data = resp["data"].(map[string]any)
	assert.Equal(t, "rejected", data["outcome"])
	reason := data["reason"].(map[string]any)
	assert.Equal(t, "INSUFFICIENT_FUNDS", reason["code"])
}

func TestOwnersAreIsolated(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("--owner", "alice", "deposit", "--amount", "10")
	require.NoError(t, err)

	stdout, _, err := env.run("--owner", "bob", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "balance: 0")

	stdout, _, err = env.run("--owner", "bob", "history")
	require.NoError(t, err)
	assert.Equal(t, "no transactions for bob\n", stdout)
}

func TestHistory_Limit(t *testing.T) {
	env := newCLIEnv(t)
	for i := 0; i < 7; i++ {
		_, _, err := env.run("deposit", "--amount", "1")
		require.NoError(t, err)
	}

	stdout, _, err := env.run("history")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 5)

	resp, err := env.runJSON("history", "--limit", "3")
	require.NoError(t, err)
	txs := resp["data"].(map[string]any)["transactions"].([]any)
	assert.Len(t, txs, 3)

	_, _, err = env.run("history", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus_IntegrityFailure(t *testing.T) {
	env := newCLIEnv(t)
	st, err := store.Open(env.db)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', 10)`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	resp, err := env.runJSON("status")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, ErrCodeIntegrity, resp["error"].(map[string]any)["code"])
}

func TestStatus_EmptyOwner(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("--owner", "", "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
