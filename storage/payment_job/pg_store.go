package payment_job

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
)

const pgSelectJob = `
SELECT job_id, authority, amount_due, deadline, closed, contributors, recipients, created_at
FROM tab_jobs`

const pgParticipant = `(authority = %[1]s OR %[1]s = ANY(recipients) OR contributors @> jsonb_build_array(jsonb_build_object('wallet', %[1]s::text)))`

// PGStore persists jobs and the ledger in Postgres. Each Update runs in one
// transaction holding a row lock on the job.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPGStore connects, initializes schema, and optionally seeds dev accounts.
func NewPGStore(ctx context.Context, dsn string, seed bool, logger *zap.SugaredLogger) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &PGStore{pool: pool, logger: logger}
	if err := NewSchemaManager(pool).Initialize(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	if seed {
		if err := s.seedAccounts(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PGStore) seedAccounts(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tab_balances`).Scan(&count); err != nil {
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

func scanPGJob(row rowScanner) (core.Job, error) {
	var (
		job          core.Job
		id, auth     string
		contributors []byte
		recipients   []string
	)
	if err := row.Scan(&id, &auth, &job.AmountDue, &job.Deadline, &job.Closed, &contributors, &recipients, &job.CreatedAt); err != nil {
		return core.Job{}, err
	}
	cs, err := decodeContributors(contributors)
	if err != nil {
		return core.Job{}, err
	}
	job.ID = core.Identity(id)
	job.Authority = core.Identity(auth)
	job.Contributors = cs
	job.Recipients = toIdentities(recipients)
	return job, nil
}

// Create inserts a new job, assigning an ID when the job has none.
func (s *PGStore) Create(ctx context.Context, job core.Job) (core.Identity, error) {
	if job.ID == "" {
		id, err := core.NewIdentity()
		if err != nil {
			return "", err
		}
		job.ID = id
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	contributors, err := encodeContributors(job.Contributors)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO tab_jobs (job_id, authority, amount_due, deadline, closed, contributors, recipients, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, string(job.ID), string(job.Authority), job.AmountDue, job.Deadline, job.Closed, contributors, toStrings(job.Recipients), job.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", errors.Wrapf(core.ErrInvalidInput, "job %s already exists", job.ID)
		}
		return "", errors.Wrap(err, "insert job")
	}
	return job.ID, nil
}

// Get loads one job.
func (s *PGStore) Get(ctx context.Context, id core.Identity) (core.Job, error) {
	job, err := scanPGJob(s.pool.QueryRow(ctx, pgSelectJob+` WHERE job_id=$1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Job{}, errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	if err != nil {
		return core.Job{}, errors.Wrapf(err, "load job %s", id)
	}
	return job, nil
}

// Put overwrites the mutable fields of an existing job.
func (s *PGStore) Put(ctx context.Context, job core.Job) error {
	return putPGJob(ctx, s.pool, job)
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func putPGJob(ctx context.Context, db pgExecer, job core.Job) error {
	contributors, err := encodeContributors(job.Contributors)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `
UPDATE tab_jobs SET authority=$2, amount_due=$3, deadline=$4, closed=$5, contributors=$6, recipients=$7
WHERE job_id=$1
`, string(job.ID), string(job.Authority), job.AmountDue, job.Deadline, job.Closed, contributors, toStrings(job.Recipients))
	if err != nil {
		return errors.Wrapf(err, "update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(core.ErrJobNotFound, "%s", job.ID)
	}
	return nil
}

// Update locks the job row, runs fn with a transaction-bound ledger and
// commits when core.ShouldCommit reports true.
func (s *PGStore) Update(ctx context.Context, id core.Identity, fn core.UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	job, err := scanPGJob(tx.QueryRow(ctx, pgSelectJob+` WHERE job_id=$1 FOR UPDATE`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	if err != nil {
		return errors.Wrapf(err, "lock job %s", id)
	}

	fnErr := fn(ctx, &job, &pgLedger{tx: tx, jobID: id})
	if !core.ShouldCommit(fnErr) {
		return fnErr
	}

	if err := putPGJob(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, "commit job %s", id)
	}
	return fnErr
}

// ListJobs returns matching jobs, newest first.
func (s *PGStore) ListJobs(ctx context.Context, filter core.Filter) ([]core.Job, error) {
	where, args := filterClause(filter, pgParticipant, func(n int) string { return fmt.Sprintf("$%d", n) })
	query := pgSelectJob + where + ` ORDER BY created_at DESC, job_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	var out []core.Job
	for rows.Next() {
		job, err := scanPGJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ListTransfers returns the audit trail of one job in execution order.
func (s *PGStore) ListTransfers(ctx context.Context, jobID core.Identity) ([]core.TransferRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, COALESCE(job_id, ''), COALESCE(from_account, ''), to_account, amount, kind, created_at
FROM tab_transfers WHERE job_id=$1 ORDER BY id
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

func scanTransfer(row rowScanner) (core.TransferRecord, error) {
	var (
		rec           core.TransferRecord
		job, from, to string
	)
	if err := row.Scan(&rec.ID, &job, &from, &to, &rec.Amount, &rec.Kind, &rec.CreatedAt); err != nil {
		return core.TransferRecord{}, err
	}
	rec.JobID = core.Identity(job)
	rec.From = core.Identity(from)
	rec.To = core.Identity(to)
	return rec, nil
}

// BalanceOf returns the committed balance of an account.
func (s *PGStore) BalanceOf(ctx context.Context, account core.Identity) (int64, error) {
	return pgBalance(ctx, s.pool, account)
}

type pgQueryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgBalance(ctx context.Context, db pgQueryRower, account core.Identity) (int64, error) {
	var balance int64
	err := db.QueryRow(ctx, `SELECT balance FROM tab_balances WHERE account=$1`, string(account)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "balance of %s", account)
	}
	return balance, nil
}

// Deposit mints funds into an account and returns the new balance.
func (s *PGStore) Deposit(ctx context.Context, account core.Identity, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrFaucetAmount
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
INSERT INTO tab_balances (account, balance) VALUES ($1, $2)
ON CONFLICT (account) DO UPDATE SET balance = tab_balances.balance + EXCLUDED.balance
RETURNING balance
`, string(account), amount).Scan(&balance)
	if err != nil {
		return 0, errors.Wrapf(err, "credit %s", account)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO tab_transfers (job_id, from_account, to_account, amount, kind) VALUES (NULL, NULL, $1, $2, $3)
`, string(account), amount, core.TransferDeposit); err != nil {
		return 0, errors.Wrap(err, "log deposit")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit deposit")
	}
	return balance, nil
}

// Ping checks the connection pool.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// pgLedger moves funds inside the transaction of one Update. Each transfer
// runs in its own savepoint so a failed transfer leaves earlier ones intact.
type pgLedger struct {
	tx    pgx.Tx
	jobID core.Identity
}

func (l *pgLedger) BalanceOf(ctx context.Context, account core.Identity) (int64, error) {
	return pgBalance(ctx, l.tx, account)
}

func (l *pgLedger) Transfer(ctx context.Context, from, to core.Identity, amount int64) error {
	if err := validateTransfer(from, to, amount); err != nil {
		return err
	}
	sp, err := l.tx.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "savepoint")
	}
	defer sp.Rollback(ctx)

	tag, err := sp.Exec(ctx, `
UPDATE tab_balances SET balance = balance - $2 WHERE account=$1 AND balance >= $2
`, string(from), amount)
	if err != nil {
		return errors.Wrapf(err, "debit %s", from)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(core.ErrInsufficientBalance, "%s cannot cover %d", from, amount)
	}
	if _, err := sp.Exec(ctx, `
INSERT INTO tab_balances (account, balance) VALUES ($1, $2)
ON CONFLICT (account) DO UPDATE SET balance = tab_balances.balance + EXCLUDED.balance
`, string(to), amount); err != nil {
		return errors.Wrapf(err, "credit %s", to)
	}
	if _, err := sp.Exec(ctx, `
INSERT INTO tab_transfers (job_id, from_account, to_account, amount, kind) VALUES ($1, $2, $3, $4, $5)
`, string(l.jobID), string(from), string(to), amount, core.KindFor(l.jobID, from, to)); err != nil {
		return errors.Wrap(err, "log transfer")
	}
	return sp.Commit(ctx)
}
