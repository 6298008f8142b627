package payment_job

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Postgres tests need a disposable database; they are skipped unless
// TABPOOL_TEST_PG_DSN points at one.
func TestPGStore(t *testing.T) {
	dsn := os.Getenv("TABPOOL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TABPOOL_TEST_PG_DSN not set")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPGStore(ctx, dsn, false, nil)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE tab_jobs, tab_balances, tab_transfers RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
