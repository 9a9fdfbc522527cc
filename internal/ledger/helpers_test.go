package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/contract/internal/store"
	"github.com/roach88/contract/internal/testutil"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func loadTestAccount(t *testing.T, st *store.Store, owner string) *Account {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	acct, err := LoadOrCreate(context.Background(), st, owner, WithClock(clock.Now))
	require.NoError(t, err)
	return acct
}
