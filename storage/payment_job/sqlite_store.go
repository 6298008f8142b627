package payment_job

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tab_jobs (
  job_id TEXT PRIMARY KEY,
  authority TEXT NOT NULL,
  amount_due INTEGER NOT NULL CHECK (amount_due > 0),
  deadline INTEGER NOT NULL,
  closed BOOLEAN NOT NULL DEFAULT 0,
  contributors TEXT NOT NULL,
  recipients TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS tab_balances (
  account TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
);
CREATE TABLE IF NOT EXISTS tab_transfers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT,
  from_account TEXT,
  to_account TEXT NOT NULL,
  amount INTEGER NOT NULL,
  kind TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tab_jobs_authority ON tab_jobs(authority);
CREATE INDEX IF NOT EXISTS idx_tab_transfers_job ON tab_transfers(job_id, id);
`

const sqliteSelectJob = `SELECT job_id, authority, amount_due, deadline, closed, contributors, recipients, created_at FROM tab_jobs`

const sqliteParticipant = `(authority = %[1]s OR EXISTS (SELECT 1 FROM json_each(recipients) WHERE value = %[1]s) OR EXISTS (SELECT 1 FROM json_each(contributors) WHERE json_extract(value, '$.wallet') = %[1]s))`

// SQLiteStore persists jobs and the ledger in an embedded SQLite database.
// The pool is limited to one connection, which serializes writers.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewSQLiteStore opens path (":memory:" for a throwaway database), creates
// the schema and optionally seeds dev accounts.
func NewSQLiteStore(ctx context.Context, path string, seed bool, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	db.SetMaxOpenConns(1)

	s := newSQLiteStore(db, logger)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	if seed {
		if err := s.seedAccounts(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func newSQLiteStore(db *sql.DB, logger *zap.SugaredLogger) *SQLiteStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteStore{db: db, logger: logger, now: time.Now}
}

func (s *SQLiteStore) seedAccounts(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tab_balances`).Scan(&count); err != nil {
		return errors.Wrap(err, "count balances")
	}
	if count > 0 {
		return nil
	}
	for _, acct := range DevAccounts() {
		if _, err := s.Deposit(ctx, acct.Wallet, acct.Balance); err != nil {
			return errors.Wrapf(err, "seed %s", acct.Name)
		}
	}
	s.logger.Infow("seeded dev accounts", "count", len(DevAccounts()))
	return nil
}

func scanSQLiteJob(row rowScanner) (core.Job, error) {
	var (
		job                      core.Job
		id, auth                 string
		contributors, recipients string
	)
	if err := row.Scan(&id, &auth, &job.AmountDue, &job.Deadline, &job.Closed, &contributors, &recipients, &job.CreatedAt); err != nil {
		return core.Job{}, err
	}
	cs, err := decodeContributors([]byte(contributors))
	if err != nil {
		return core.Job{}, err
	}
	rs, err := decodeRecipients([]byte(recipients))
	if err != nil {
		return core.Job{}, err
	}
	job.ID = core.Identity(id)
	job.Authority = core.Identity(auth)
	job.Contributors = cs
	job.Recipients = rs
	return job, nil
}

// Create inserts a new job, assigning an ID when the job has none.
func (s *SQLiteStore) Create(ctx context.Context, job core.Job) (core.Identity, error) {
	if job.ID == "" {
		id, err := core.NewIdentity()
		if err != nil {
			return "", err
		}
		job.ID = id
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}
	contributors, err := encodeContributors(job.Contributors)
	if err != nil {
		return "", err
	}
	recipients, err := encodeRecipients(job.Recipients)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO tab_jobs (job_id, authority, amount_due, deadline, closed, contributors, recipients, created_at)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)
`, string(job.ID), string(job.Authority), job.AmountDue, job.Deadline, job.Closed, contributors, recipients, job.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", errors.Wrapf(core.ErrInvalidInput, "job %s already exists", job.ID)
		}
		return "", errors.Wrap(err, "insert job")
	}
	return job.ID, nil
}

// Get loads one job.
func (s *SQLiteStore) Get(ctx context.Context, id core.Identity) (core.Job, error) {
	job, err := scanSQLiteJob(s.db.QueryRowContext(ctx, sqliteSelectJob+` WHERE job_id = ?1`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Job{}, errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	if err != nil {
		return core.Job{}, errors.Wrapf(err, "load job %s", id)
	}
	return job, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlQueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Put overwrites the mutable fields of an existing job.
func (s *SQLiteStore) Put(ctx context.Context, job core.Job) error {
	return putSQLiteJob(ctx, s.db, job)
}

func putSQLiteJob(ctx context.Context, db sqlExecer, job core.Job) error {
	contributors, err := encodeContributors(job.Contributors)
	if err != nil {
		return err
	}
	recipients, err := encodeRecipients(job.Recipients)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
UPDATE tab_jobs SET authority = ?2, amount_due = ?3, deadline = ?4, closed = ?5, contributors = ?6, recipients = ?7
WHERE job_id = ?1
`, string(job.ID), string(job.Authority), job.AmountDue, job.Deadline, job.Closed, contributors, recipients)
	if err != nil {
		return errors.Wrapf(err, "update job %s", job.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(core.ErrJobNotFound, "%s", job.ID)
	}
	return nil
}

// Update runs fn inside one transaction and commits when core.ShouldCommit
// reports true.
func (s *SQLiteStore) Update(ctx context.Context, id core.Identity, fn core.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	job, err := scanSQLiteJob(tx.QueryRowContext(ctx, sqliteSelectJob+` WHERE job_id = ?1`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	if err != nil {
		return errors.Wrapf(err, "load job %s", id)
	}

	fnErr := fn(ctx, &job, &sqliteLedger{tx: tx, jobID: id, now: s.now})
	if !core.ShouldCommit(fnErr) {
		return fnErr
	}

	if err := putSQLiteJob(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit job %s", id)
	}
	return fnErr
}

// ListJobs returns matching jobs, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context, filter core.Filter) ([]core.Job, error) {
	where, args := filterClause(filter, sqliteParticipant, func(n int) string { return fmt.Sprintf("?%d", n) })
	query := sqliteSelectJob + where + ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	var out []core.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ListTransfers returns the audit trail of one job in execution order.
func (s *SQLiteStore) ListTransfers(ctx context.Context, jobID core.Identity) ([]core.TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, COALESCE(job_id, ''), COALESCE(from_account, ''), to_account, amount, kind, created_at
FROM tab_transfers WHERE job_id = ?1 ORDER BY id
`, string(jobID))
	if err != nil {
		return nil, errors.Wrap(err, "list transfers")
	}
	defer rows.Close()

	var out []core.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// BalanceOf returns the committed balance of an account.
func (s *SQLiteStore) BalanceOf(ctx context.Context, account core.Identity) (int64, error) {
	return sqliteBalance(ctx, s.db, account)
}

func sqliteBalance(ctx context.Context, db sqlQueryRower, account core.Identity) (int64, error) {
	var balance int64
	err := db.QueryRowContext(ctx, `SELECT balance FROM tab_balances WHERE account = ?1`, string(account)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "balance of %s", account)
	}
	return balance, nil
}

// Deposit mints funds into an account and returns the new balance.
func (s *SQLiteStore) Deposit(ctx context.Context, account core.Identity, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrFaucetAmount
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteCredit, string(account), amount); err != nil {
		return 0, errors.Wrapf(err, "credit %s", account)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO tab_transfers (job_id, from_account, to_account, amount, kind, created_at) VALUES (NULL, NULL, ?1, ?2, ?3, ?4)
`, string(account), amount, core.TransferDeposit, s.now().UTC()); err != nil {
		return 0, errors.Wrap(err, "log deposit")
	}
	balance, err := sqliteBalance(ctx, tx, account)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit deposit")
	}
	return balance, nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCredit = `
INSERT INTO tab_balances (account, balance) VALUES (?1, ?2)
ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance
`

// sqliteLedger moves funds inside the transaction of one Update. Each
// transfer is wrapped in a savepoint.
type sqliteLedger struct {
	tx    *sql.Tx
	jobID core.Identity
	now   func() time.Time
}

func (l *sqliteLedger) BalanceOf(ctx context.Context, account core.Identity) (int64, error) {
	return sqliteBalance(ctx, l.tx, account)
}

func (l *sqliteLedger) Transfer(ctx context.Context, from, to core.Identity, amount int64) (err error) {
	if err := validateTransfer(from, to, amount); err != nil {
		return err
	}
	if _, err := l.tx.ExecContext(ctx, `SAVEPOINT transfer`); err != nil {
		return errors.Wrap(err, "savepoint")
	}
	defer func() {
		if err != nil {
			_, _ = l.tx.ExecContext(ctx, `ROLLBACK TO transfer`)
		}
		_, _ = l.tx.ExecContext(ctx, `RELEASE transfer`)
	}()

	res, err := l.tx.ExecContext(ctx, `
UPDATE tab_balances SET balance = balance - ?2 WHERE account = ?1 AND balance >= ?2
`, string(from), amount)
	if err != nil {
		return errors.Wrapf(err, "debit %s", from)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(core.ErrInsufficientBalance, "%s cannot cover %d", from, amount)
	}
	if _, err := l.tx.ExecContext(ctx, sqliteCredit, string(to), amount); err != nil {
		return errors.Wrapf(err, "credit %s", to)
	}
	if _, err := l.tx.ExecContext(ctx, `
INSERT INTO tab_transfers (job_id, from_account, to_account, amount, kind, created_at) VALUES (?1, ?2, ?3, ?4, ?5, ?6)
`, string(l.jobID), string(from), string(to), amount, core.KindFor(l.jobID, from, to), l.now().UTC()); err != nil {
		return errors.Wrap(err, "log transfer")
	}
	return nil
}
