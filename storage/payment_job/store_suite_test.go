package payment_job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
)

var (
	alice = core.DeriveIdentity("alice")
	bob   = core.DeriveIdentity("bob")
	carol = core.DeriveIdentity("carol")
	xena  = core.DeriveIdentity("xena")
	yuri  = core.DeriveIdentity("yuri")
	owner = core.DeriveIdentity("owner")
)

var suiteEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newSuiteJob(t *testing.T, offset int) core.Job {
	t.Helper()
	job, err := core.NewEngine().CreateJob(core.CreateJobParams{
		Contributors: []core.Identity{alice, bob, carol},
		Recipients:   []core.Identity{xena, yuri},
		AmountDue:    10,
		Authority:    owner,
	})
	require.NoError(t, err)
	job.CreatedAt = suiteEpoch.Add(time.Duration(offset) * time.Minute)
	return job
}

func fund(t *testing.T, s Store, accounts ...core.Identity) {
	t.Helper()
	for _, a := range accounts {
		_, err := s.Deposit(context.Background(), a, 100)
		require.NoError(t, err)
	}
}

// runStoreSuite exercises the behaviour every Store backend must share.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	engine := core.NewEngine()

	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		job := newSuiteJob(t, 0)

		id, err := s.Create(ctx, job)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, owner, got.Authority)
		assert.Equal(t, core.NoDeadline, got.Deadline)
		assert.Equal(t, job.Contributors, got.Contributors)
		assert.Equal(t, job.Recipients, got.Recipients)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))

		job.ID = id
		_, err = s.Create(ctx, job)
		assert.True(t, errors.Is(err, core.ErrInvalidInput))

		_, err = s.Get(ctx, core.DeriveIdentity("missing"))
		assert.True(t, errors.Is(err, core.ErrJobNotFound))
	})

	t.Run("put", func(t *testing.T) {
		s := open(t)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		job, err := s.Get(ctx, id)
		require.NoError(t, err)
		job.Contributors[1].Paid = true
		require.NoError(t, s.Put(ctx, job))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Contributors[1].Paid)

		job.ID = core.DeriveIdentity("missing")
		assert.True(t, errors.Is(s.Put(ctx, job), core.ErrJobNotFound))
	})

	t.Run("update commits payment", func(t *testing.T) {
		s := open(t)
		fund(t, s, alice)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		err = s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
			_, err := engine.RecordPayment(ctx, job, alice, 0, l)
			return err
		})
		require.NoError(t, err)

		job, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, job.Contributors[0].Paid)
		assertBalance(t, s, alice, 90)
		assertBalance(t, s, id, 10)

		transfers, err := s.ListTransfers(ctx, id)
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.Equal(t, core.TransferContribution, transfers[0].Kind)
		assert.Equal(t, alice, transfers[0].From)
		assert.Equal(t, id, transfers[0].To)
	})

	t.Run("update rolls back on error", func(t *testing.T) {
		s := open(t)
		fund(t, s, alice)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
			require.NoError(t, l.Transfer(ctx, alice, id, 10))
			job.Closed = true
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		job, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, job.Closed)
		assertBalance(t, s, alice, 100)
		assertBalance(t, s, id, 0)
	})

	t.Run("update keeps state marked for commit", func(t *testing.T) {
		s := open(t)
		fund(t, s, alice)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		err = s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
			require.NoError(t, l.Transfer(ctx, alice, xena, 30))
			job.Closed = true
			failed := l.Transfer(ctx, alice, yuri, 500)
			require.True(t, errors.Is(failed, core.ErrInsufficientBalance))
			return errors.Mark(failed, core.ErrCommitOnFailure)
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInsufficientBalance))

		job, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, job.Closed)
		assertBalance(t, s, alice, 70)
		assertBalance(t, s, xena, 30)
		assertBalance(t, s, yuri, 0)
	})

	t.Run("update of missing job", func(t *testing.T) {
		s := open(t)
		err := s.Update(ctx, core.DeriveIdentity("missing"), func(context.Context, *core.Job, core.Ledger) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.True(t, errors.Is(err, core.ErrJobNotFound))
	})

	t.Run("pool scenario", func(t *testing.T) {
		s := open(t)
		fund(t, s, alice, bob, carol)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		pay := func(w core.Identity) error {
			return s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
				_, err := engine.RecordPayment(ctx, job, w, 0, l)
				return err
			})
		}
		require.NoError(t, pay(alice))
		require.NoError(t, pay(bob))

		var d *core.Distribution
		err = s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
			var err error
			d, err = engine.DistributeFunds(ctx, job, owner, 0, l)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(10), d.PerRecipient)
		assertBalance(t, s, xena, 10)
		assertBalance(t, s, yuri, 10)
		assertBalance(t, s, id, 0)

		assert.True(t, errors.Is(pay(carol), core.ErrJobClosed))
		assertBalance(t, s, carol, 100)

		transfers, err := s.ListTransfers(ctx, id)
		require.NoError(t, err)
		require.Len(t, transfers, 4)
		assert.Equal(t, core.TransferDistribution, transfers[2].Kind)
		assert.Equal(t, xena, transfers[2].To)
		assert.Equal(t, yuri, transfers[3].To)
	})

	t.Run("concurrent payments", func(t *testing.T) {
		s := open(t)
		fund(t, s, alice, bob, carol)
		id, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for _, w := range []core.Identity{alice, bob, carol, alice, bob, carol} {
			wg.Add(1)
			go func(w core.Identity) {
				defer wg.Done()
				errs <- s.Update(ctx, id, func(ctx context.Context, job *core.Job, l core.Ledger) error {
					_, err := engine.RecordPayment(ctx, job, w, 0, l)
					return err
				})
			}(w)
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, core.ErrAlreadyPaid):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 3, ok)
		assert.Equal(t, 3, dup)
		assertBalance(t, s, id, 30)
	})

	t.Run("list jobs", func(t *testing.T) {
		s := open(t)
		first, err := s.Create(ctx, newSuiteJob(t, 0))
		require.NoError(t, err)

		other := newSuiteJob(t, 1)
		other.Authority = alice
		other.Recipients = []core.Identity{carol}
		other.Contributors = []core.ContributorStatus{{Wallet: bob}}
		second, err := s.Create(ctx, other)
		require.NoError(t, err)

		closed := newSuiteJob(t, 2)
		closed.Closed = true
		third, err := s.Create(ctx, closed)
		require.NoError(t, err)

		ids := func(jobs []core.Job) []core.Identity {
			var out []core.Identity
			for _, j := range jobs {
				out = append(out, j.ID)
			}
			return out
		}

		all, err := s.ListJobs(ctx, core.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []core.Identity{third, second, first}, ids(all))

		byOwner, err := s.ListJobs(ctx, core.Filter{Authority: owner})
		require.NoError(t, err)
		assert.Equal(t, []core.Identity{third, first}, ids(byOwner))

		withXena, err := s.ListJobs(ctx, core.Filter{Participant: xena})
		require.NoError(t, err)
		assert.Equal(t, []core.Identity{third, first}, ids(withXena))

		withAlice, err := s.ListJobs(ctx, core.Filter{Participant: alice})
		require.NoError(t, err)
		assert.Equal(t, []core.Identity{third, second, first}, ids(withAlice))

		notClosed := false
		openJobs, err := s.ListJobs(ctx, core.Filter{Closed: &notClosed, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []core.Identity{second}, ids(openJobs))
	})

	t.Run("deposit", func(t *testing.T) {
		s := open(t)
		balance, err := s.Deposit(ctx, alice, 40)
		require.NoError(t, err)
		assert.Equal(t, int64(40), balance)
		balance, err = s.Deposit(ctx, alice, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(42), balance)

		_, err = s.Deposit(ctx, alice, 0)
		assert.True(t, errors.Is(err, core.ErrInvalidInput))

		assertBalance(t, s, bob, 0)
		require.NoError(t, s.Ping(ctx))
	})
}

func assertBalance(t *testing.T, s Store, account core.Identity, want int64) {
	t.Helper()
	got, err := s.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, want, got, "balance of %s", account)
}
