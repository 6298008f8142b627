package payment_job

import (
	"context"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(false)
	})
}

func TestMemoryStoreSeed(t *testing.T) {
	s := NewMemoryStore(true)
	for _, acct := range DevAccounts() {
		balance, err := s.BalanceOf(context.Background(), acct.Wallet)
		require.NoError(t, err)
		assert.Equal(t, devBalance, balance, acct.Name)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)
	id, err := s.Create(ctx, newSuiteJob(t, 0))
	require.NoError(t, err)

	job, err := s.Get(ctx, id)
	require.NoError(t, err)
	job.Contributors[0].Paid = true
	job.Recipients[0] = alice

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, again.Contributors[0].Paid)
	assert.Equal(t, xena, again.Recipients[0])
}

func TestMemoryStoreRejectsOverflowingCredit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)

	_, err := s.Deposit(ctx, xena, math.MaxInt64)
	require.NoError(t, err)
	_, err = s.Deposit(ctx, xena, math.MaxInt64)
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "%v", err)
	assertBalance(t, s, xena, math.MaxInt64)

	id, err := s.Create(ctx, newSuiteJob(t, 0))
	require.NoError(t, err)
	fund(t, s, alice)
	err = s.Update(ctx, id, func(ctx context.Context, job *core.Job, ledger core.Ledger) error {
		if err := ledger.Transfer(ctx, alice, id, 10); err != nil {
			return err
		}
		return ledger.Transfer(ctx, id, xena, 10)
	})
	assert.True(t, errors.Is(err, core.ErrInvalidInput), "%v", err)
	assertBalance(t, s, xena, math.MaxInt64)
	assertBalance(t, s, alice, 100)
}
