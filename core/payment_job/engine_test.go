package payment_job

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerCall struct {
	from, to Identity
	amount   int64
}

// fakeLedger is an in-memory Ledger whose transfers can be made to fail.
type fakeLedger struct {
	balances map[Identity]int64
	calls    []ledgerCall
	fail     func(call ledgerCall, n int) error
}

func newFakeLedger(balances map[Identity]int64) *fakeLedger {
	if balances == nil {
		balances = map[Identity]int64{}
	}
	return &fakeLedger{balances: balances}
}

func (l *fakeLedger) Transfer(_ context.Context, from, to Identity, amount int64) error {
	call := ledgerCall{from: from, to: to, amount: amount}
	if l.fail != nil {
		if err := l.fail(call, len(l.calls)); err != nil {
			return err
		}
	}
	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	l.calls = append(l.calls, call)
	return nil
}

func (l *fakeLedger) BalanceOf(_ context.Context, account Identity) (int64, error) {
	return l.balances[account], nil
}

const (
	authority Identity = "authority"
	jobID     Identity = "job-pool"
	walletA   Identity = "A"
	walletB   Identity = "B"
	walletC   Identity = "C"
	walletX   Identity = "X"
	walletY   Identity = "Y"
)

func newTestJob(t *testing.T, e *Engine, amount int64, deadline *int64) Job {
	t.Helper()
	job, err := e.CreateJob(CreateJobParams{
		Contributors: []Identity{walletA, walletB, walletC},
		Recipients:   []Identity{walletX, walletY},
		AmountDue:    amount,
		Deadline:     deadline,
		Authority:    authority,
	})
	require.NoError(t, err)
	job.ID = jobID
	return job
}

func fundedLedger() *fakeLedger {
	return newFakeLedger(map[Identity]int64{walletA: 1000, walletB: 1000, walletC: 1000})
}

func TestCreateJob(t *testing.T) {
	e := NewEngine()

	t.Run("defaults", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		assert.False(t, job.Closed)
		assert.Equal(t, NoDeadline, job.Deadline)
		assert.False(t, job.HasDeadline())
		assert.Equal(t, authority, job.Authority)
		assert.Equal(t, []Identity{walletX, walletY}, job.Recipients)
		require.Len(t, job.Contributors, 3)
		for _, c := range job.Contributors {
			assert.False(t, c.Paid)
		}
	})

	t.Run("explicit deadline", func(t *testing.T) {
		deadline := int64(1_700_000_000)
		job := newTestJob(t, e, 10, &deadline)
		assert.Equal(t, deadline, job.Deadline)
		assert.True(t, job.HasDeadline())
	})

	t.Run("duplicate recipients allowed", func(t *testing.T) {
		_, err := e.CreateJob(CreateJobParams{
			Contributors: []Identity{walletA},
			Recipients:   []Identity{walletX, walletX},
			AmountDue:    5,
			Authority:    authority,
		})
		assert.NoError(t, err)
	})

	invalid := []struct {
		name   string
		params CreateJobParams
	}{
		{"no contributors", CreateJobParams{Recipients: []Identity{walletX}, AmountDue: 1, Authority: authority}},
		{"no recipients", CreateJobParams{Contributors: []Identity{walletA}, AmountDue: 1, Authority: authority}},
		{"zero amount", CreateJobParams{Contributors: []Identity{walletA}, Recipients: []Identity{walletX}, AmountDue: 0, Authority: authority}},
		{"negative amount", CreateJobParams{Contributors: []Identity{walletA}, Recipients: []Identity{walletX}, AmountDue: -5, Authority: authority}},
		{"duplicate contributor", CreateJobParams{Contributors: []Identity{walletA, walletB, walletA}, Recipients: []Identity{walletX}, AmountDue: 1, Authority: authority}},
		{"missing authority", CreateJobParams{Contributors: []Identity{walletA}, Recipients: []Identity{walletX}, AmountDue: 1}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateJob(tc.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()

	t.Run("marks payer and moves funds", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()

		d, err := e.RecordPayment(ctx, &job, walletA, 0, ledger)
		require.NoError(t, err)
		assert.Nil(t, d)
		assert.True(t, job.Contributors[0].Paid)
		assert.Equal(t, 1, job.PaidCount())
		assert.Equal(t, int64(990), ledger.balances[walletA])
		assert.Equal(t, int64(10), ledger.balances[jobID])
	})

	t.Run("already paid", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		_, err := e.RecordPayment(ctx, &job, walletA, 0, ledger)
		require.NoError(t, err)

		_, err = e.RecordPayment(ctx, &job, walletA, 0, ledger)
		assert.True(t, errors.Is(err, ErrAlreadyPaid))
		assert.Equal(t, int64(10), ledger.balances[jobID])
	})

	t.Run("not a contributor", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		_, err := e.RecordPayment(ctx, &job, walletX, 0, ledger)
		assert.True(t, errors.Is(err, ErrNotAContributor))
		assert.Empty(t, ledger.calls)
	})

	t.Run("closed job", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		job.Closed = true
		ledger := fundedLedger()
		_, err := e.RecordPayment(ctx, &job, walletA, 0, ledger)
		assert.True(t, errors.Is(err, ErrJobClosed))
		assert.Empty(t, ledger.calls)
	})

	t.Run("transfer failure leaves contributor unpaid", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := newFakeLedger(map[Identity]int64{walletA: 5})

		_, err := e.RecordPayment(ctx, &job, walletA, 0, ledger)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransferFailed))
		assert.True(t, errors.Is(err, ErrInsufficientBalance))
		assert.False(t, ShouldCommit(err))
		assert.False(t, job.Contributors[0].Paid)
		assert.Equal(t, int64(5), ledger.balances[walletA])
		assert.Zero(t, ledger.balances[jobID])
	})
}

func TestDistributeFunds(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()

	pay := func(t *testing.T, job *Job, ledger Ledger, wallets ...Identity) {
		t.Helper()
		for _, w := range wallets {
			_, err := e.RecordPayment(ctx, job, w, 0, ledger)
			require.NoError(t, err)
		}
	}

	t.Run("authority before deadline", func(t *testing.T) {
		deadline := int64(1000)
		job := newTestJob(t, e, 10, &deadline)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB)

		d, err := e.DistributeFunds(ctx, &job, authority, 10, ledger)
		require.NoError(t, err)
		assert.True(t, job.Closed)
		assert.True(t, d.Complete)
		assert.Equal(t, int64(20), d.TotalCollected)
		assert.Equal(t, int64(10), d.PerRecipient)
		assert.Equal(t, []Payout{{walletX, 10}, {walletY, 10}}, d.Transfers)
		assert.Equal(t, int64(10), ledger.balances[walletX])
		assert.Equal(t, int64(10), ledger.balances[walletY])
		assert.Zero(t, ledger.balances[jobID])
	})

	t.Run("non-authority before deadline", func(t *testing.T) {
		deadline := int64(1000)
		job := newTestJob(t, e, 10, &deadline)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA)

		_, err := e.DistributeFunds(ctx, &job, walletA, 999, ledger)
		assert.True(t, errors.Is(err, ErrBeforeDeadline))
		assert.False(t, job.Closed)
		assert.Equal(t, int64(10), ledger.balances[jobID])
	})

	t.Run("non-authority at deadline", func(t *testing.T) {
		deadline := int64(1000)
		job := newTestJob(t, e, 10, &deadline)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA)

		d, err := e.DistributeFunds(ctx, &job, walletC, 1000, ledger)
		require.NoError(t, err)
		assert.True(t, job.Closed)
		assert.Equal(t, int64(5), d.PerRecipient)
	})

	t.Run("no deadline blocks non-authority forever", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA)

		_, err := e.DistributeFunds(ctx, &job, walletB, NoDeadline-1, ledger)
		assert.True(t, errors.Is(err, ErrBeforeDeadline))
		assert.False(t, job.Closed)
	})

	t.Run("zero paid closes without transfers", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)
		assert.True(t, job.Closed)
		assert.Zero(t, d.PaidCount)
		assert.Empty(t, d.Transfers)
		assert.Empty(t, ledger.calls)
	})

	t.Run("pool short of collected total", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB)
		ledger.balances[jobID] = 15

		_, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		assert.True(t, errors.Is(err, ErrInsufficientFunds))
		assert.False(t, ShouldCommit(err))
		assert.False(t, job.Closed)
		assert.Equal(t, int64(15), ledger.balances[jobID])
	})

	t.Run("surplus in pool is not distributed", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB)
		ledger.balances[jobID] += 7

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)
		assert.Equal(t, int64(27), d.PoolBalance)
		assert.Equal(t, int64(20), d.Distributable)
		assert.Equal(t, int64(10), d.PerRecipient)
		assert.Equal(t, int64(7), ledger.balances[jobID])
	})

	t.Run("floor division leaves remainder in pool", func(t *testing.T) {
		job, err := e.CreateJob(CreateJobParams{
			Contributors: []Identity{walletA, walletB},
			Recipients:   []Identity{walletX, walletY, walletC},
			AmountDue:    10,
			Authority:    authority,
		})
		require.NoError(t, err)
		job.ID = jobID
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB)

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)
		assert.Equal(t, int64(6), d.PerRecipient)
		assert.Equal(t, int64(2), d.Remainder)
		assert.Equal(t, int64(18), d.Distributed())
		assert.Equal(t, int64(2), ledger.balances[jobID])
	})

	t.Run("three payments of 100 over two recipients", func(t *testing.T) {
		job := newTestJob(t, e, 100, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB, walletC)

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)
		assert.Equal(t, int64(300), d.TotalCollected)
		assert.Equal(t, int64(150), d.PerRecipient)
		assert.Equal(t, int64(150), ledger.balances[walletX])
		assert.Equal(t, int64(150), ledger.balances[walletY])
	})

	t.Run("share rounding to zero closes without transfers", func(t *testing.T) {
		job, err := e.CreateJob(CreateJobParams{
			Contributors: []Identity{walletA},
			Recipients:   []Identity{walletX, walletY},
			AmountDue:    1,
			Authority:    authority,
		})
		require.NoError(t, err)
		job.ID = jobID
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA)

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)
		assert.True(t, job.Closed)
		assert.Zero(t, d.PerRecipient)
		assert.Empty(t, d.Transfers)
		assert.Equal(t, int64(1), ledger.balances[jobID])
	})

	t.Run("mid-loop failure keeps job closed and earlier payouts", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA, walletB)
		ledger.fail = func(call ledgerCall, _ int) error {
			if call.to == walletY {
				return errors.New("recipient account frozen")
			}
			return nil
		}

		d, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransferFailed))
		assert.True(t, ShouldCommit(err))
		assert.True(t, job.Closed)
		require.NotNil(t, d)
		assert.False(t, d.Complete)
		assert.Equal(t, []Payout{{walletX, 10}}, d.Transfers)
		assert.Equal(t, int64(10), ledger.balances[walletX])
		assert.Zero(t, ledger.balances[walletY])
		assert.Equal(t, int64(10), ledger.balances[jobID])

		_, err = e.DistributeFunds(ctx, &job, authority, 0, ledger)
		assert.True(t, errors.Is(err, ErrJobClosed))
	})

	t.Run("second distribution rejected", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		pay(t, &job, ledger, walletA)
		_, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
		require.NoError(t, err)

		_, err = e.DistributeFunds(ctx, &job, authority, 0, ledger)
		assert.True(t, errors.Is(err, ErrJobClosed))
	})
}

func TestPoolScenario(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	job := newTestJob(t, e, 10, nil)
	ledger := fundedLedger()

	for _, w := range []Identity{walletA, walletB} {
		_, err := e.RecordPayment(ctx, &job, w, 0, ledger)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(20), ledger.balances[jobID])

	_, err := e.DistributeFunds(ctx, &job, authority, 0, ledger)
	require.NoError(t, err)
	assert.Equal(t, int64(10), ledger.balances[walletX])
	assert.Equal(t, int64(10), ledger.balances[walletY])
	assert.True(t, job.Closed)

	_, err = e.RecordPayment(ctx, &job, walletC, 0, ledger)
	assert.True(t, errors.Is(err, ErrJobClosed))
	assert.Equal(t, int64(1000), ledger.balances[walletC])
}

func TestAutoDistribute(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(WithAutoDistribute(true))
	require.True(t, e.AutoDistribute())

	t.Run("final payment distributes", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()

		for _, w := range []Identity{walletA, walletB} {
			d, err := e.RecordPayment(ctx, &job, w, 0, ledger)
			require.NoError(t, err)
			assert.Nil(t, d)
		}
		d, err := e.RecordPayment(ctx, &job, walletC, 0, ledger)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.True(t, job.Closed)
		assert.Equal(t, int64(15), d.PerRecipient)
		assert.Equal(t, int64(15), ledger.balances[walletX])
	})

	t.Run("distribution failure does not fail payment", func(t *testing.T) {
		job := newTestJob(t, e, 10, nil)
		ledger := fundedLedger()
		ledger.fail = func(call ledgerCall, _ int) error {
			if call.from == jobID {
				return errors.New("outbound transfers disabled")
			}
			return nil
		}

		for _, w := range []Identity{walletA, walletB, walletC} {
			_, err := e.RecordPayment(ctx, &job, w, 0, ledger)
			require.NoError(t, err)
		}
		assert.True(t, job.AllPaid())
		assert.True(t, job.Closed)
		assert.Equal(t, int64(30), ledger.balances[jobID])
	})
}

func TestErrorCodes(t *testing.T) {
	cases := map[error]string{
		ErrInvalidInput:      "INVALID_INPUT",
		ErrJobClosed:         "JOB_CLOSED",
		ErrNotAContributor:   "NOT_A_CONTRIBUTOR",
		ErrAlreadyPaid:       "ALREADY_PAID",
		ErrBeforeDeadline:    "BEFORE_DEADLINE",
		ErrInsufficientFunds: "INSUFFICIENT_FUNDS",
		ErrJobNotFound:       "JOB_NOT_FOUND",
		errors.New("boom"):   "INTERNAL",
	}
	for err, want := range cases {
		assert.Equal(t, want, Code(errors.Wrap(err, "context")))
	}

	wrapped := transferFailed(ErrInsufficientBalance, "collect")
	assert.Equal(t, "TRANSFER_FAILED", Code(wrapped))
	assert.Equal(t, 422, HTTPStatus(wrapped))
	assert.Equal(t, 404, HTTPStatus(ErrJobNotFound))
	assert.Equal(t, 200, HTTPStatus(nil))
}
