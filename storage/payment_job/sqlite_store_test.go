package payment_job

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
)

func openSQLite(t *testing.T, seed bool) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:", seed, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return openSQLite(t, false)
	})
}

func TestSQLiteStoreSeed(t *testing.T) {
	s := openSQLite(t, true)
	balance, err := s.BalanceOf(context.Background(), DevAccounts()[0].Wallet)
	require.NoError(t, err)
	assert.Equal(t, devBalance, balance)

	// seeding twice does not double balances
	require.NoError(t, s.seedAccounts(context.Background()))
	balance, err = s.BalanceOf(context.Background(), DevAccounts()[0].Wallet)
	require.NoError(t, err)
	assert.Equal(t, devBalance, balance)
}

func TestSQLiteDepositStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newSQLiteStore(db, nil)
	acct := core.DeriveIdentity("alice")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tab_balances").
		WithArgs(string(acct), int64(50)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO tab_transfers").
		WithArgs(string(acct), int64(50), core.TransferDeposit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT balance FROM tab_balances").
		WithArgs(string(acct)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(50)))
	mock.ExpectCommit()

	balance, err := s.Deposit(context.Background(), acct, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteBalanceOfUnknownAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newSQLiteStore(db, nil)
	mock.ExpectQuery("SELECT balance FROM tab_balances").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := s.BalanceOf(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteUpdateRollsBackRejectedPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newSQLiteStore(db, nil)
	job := newSuiteJob(t, 0)
	job.ID = core.DeriveIdentity("job")
	job.Closed = true
	contributors, err := encodeContributors(job.Contributors)
	require.NoError(t, err)
	recipients, err := encodeRecipients(job.Recipients)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT job_id, authority").
		WithArgs(string(job.ID)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "authority", "amount_due", "deadline", "closed", "contributors", "recipients", "created_at"}).
			AddRow(string(job.ID), string(job.Authority), job.AmountDue, job.Deadline, true, contributors, recipients, job.CreatedAt))
	mock.ExpectRollback()

	err = s.Update(context.Background(), job.ID, func(ctx context.Context, j *core.Job, l core.Ledger) error {
		_, err := core.NewEngine().RecordPayment(ctx, j, alice, 0, l)
		return err
	})
	assert.ErrorIs(t, err, core.ErrJobClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
