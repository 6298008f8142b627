package payment_job

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	core "tabpool-backend/core/payment_job"
)

// MemoryStore holds jobs, balances and the transfer log in memory.
// The single mutex makes every Update atomic across the maps and also
// serializes writers to the same job.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[core.Identity]core.Job
	order     []core.Identity
	balances  map[core.Identity]int64
	transfers []core.TransferRecord
	nextID    int64
	now       func() time.Time
}

// NewMemoryStore returns an empty store, optionally funded with dev accounts.
func NewMemoryStore(seed bool) *MemoryStore {
	s := &MemoryStore{
		jobs:     make(map[core.Identity]core.Job),
		balances: make(map[core.Identity]int64),
		now:      time.Now,
	}
	if seed {
		for _, acct := range DevAccounts() {
			s.balances[acct.Wallet] = acct.Balance
			s.appendTransfer("", "", acct.Wallet, acct.Balance)
		}
	}
	return s
}

// Create stores a new job, assigning an ID when the job has none.
func (s *MemoryStore) Create(_ context.Context, job core.Job) (core.Identity, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return "", errors.Wrapf(core.ErrInvalidInput, "job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	s.order = append(s.order, job.ID)
	return job.ID, nil
}

// Get returns a copy of the job.
func (s *MemoryStore) Get(_ context.Context, id core.Identity) (core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.Job{}, errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	return job.Clone(), nil
}

// Put overwrites an existing job record.
func (s *MemoryStore) Put(_ context.Context, job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return errors.Wrapf(core.ErrJobNotFound, "%s", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Update runs fn against a copy of the job and a staged ledger, then
// publishes both when core.ShouldCommit reports true.
func (s *MemoryStore) Update(ctx context.Context, id core.Identity, fn core.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return errors.Wrapf(core.ErrJobNotFound, "%s", id)
	}
	job := stored.Clone()
	ledger := &stagedLedger{store: s, jobID: id, deltas: make(map[core.Identity]int64)}

	err := fn(ctx, &job, ledger)
	if !core.ShouldCommit(err) {
		return err
	}

	s.jobs[id] = job
	for acct, delta := range ledger.deltas {
		s.balances[acct] += delta
	}
	for _, rec := range ledger.staged {
		s.appendTransfer(rec.JobID, rec.From, rec.To, rec.Amount)
	}
	return err
}

// ListJobs returns matching jobs, newest first.
func (s *MemoryStore) ListJobs(_ context.Context, filter core.Filter) ([]core.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Job
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if !filter.Matches(job) {
			continue
		}
		out = append(out, job.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// ListTransfers returns the audit trail of one job in execution order.
func (s *MemoryStore) ListTransfers(_ context.Context, jobID core.Identity) ([]core.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.TransferRecord
	for _, rec := range s.transfers {
		if rec.JobID == jobID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// BalanceOf returns the committed balance of an account.
func (s *MemoryStore) BalanceOf(_ context.Context, account core.Identity) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

// Deposit mints funds into an account and returns the new balance.
func (s *MemoryStore) Deposit(_ context.Context, account core.Identity, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrFaucetAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkCredit(account, s.balances[account], amount); err != nil {
		return 0, err
	}
	s.balances[account] += amount
	s.appendTransfer("", "", account, amount)
	return s.balances[account], nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) appendTransfer(jobID, from, to core.Identity, amount int64) {
	s.nextID++
	s.transfers = append(s.transfers, core.TransferRecord{
		ID:        s.nextID,
		JobID:     jobID,
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      core.KindFor(jobID, from, to),
		CreatedAt: s.now().UTC(),
	})
}

// stagedLedger buffers transfers made during one Update.
type stagedLedger struct {
	store  *MemoryStore
	jobID  core.Identity
	deltas map[core.Identity]int64
	staged []core.TransferRecord
}

func (l *stagedLedger) BalanceOf(_ context.Context, account core.Identity) (int64, error) {
	return l.store.balances[account] + l.deltas[account], nil
}

func (l *stagedLedger) Transfer(ctx context.Context, from, to core.Identity, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateTransfer(from, to, amount); err != nil {
		return err
	}
	balance, _ := l.BalanceOf(ctx, from)
	if balance < amount {
		return errors.Wrapf(core.ErrInsufficientBalance, "%s holds %d, needs %d", from, balance, amount)
	}
	current, _ := l.BalanceOf(ctx, to)
	if err := checkCredit(to, current, amount); err != nil {
		return err
	}
	l.deltas[from] -= amount
	l.deltas[to] += amount
	l.staged = append(l.staged, core.TransferRecord{JobID: l.jobID, From: from, To: to, Amount: amount})
	return nil
}

func validateTransfer(from, to core.Identity, amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(core.ErrInvalidInput, "transfer amount %d", amount)
	}
	if from == "" || to == "" || from == to {
		return errors.Wrapf(core.ErrInvalidInput, "transfer %s -> %s", from, to)
	}
	return nil
}

// checkCredit rejects credits that would overflow an int64 balance.
func checkCredit(account core.Identity, balance, amount int64) error {
	if balance > math.MaxInt64-amount {
		return errors.Wrapf(core.ErrInvalidInput, "credit of %d overflows balance of %s", amount, account)
	}
	return nil
}
