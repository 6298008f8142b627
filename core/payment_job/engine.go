package payment_job

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Engine implements the job state machine. It holds no per-job state; the
// store hands it a job and a ledger scoped to one atomic unit.
type Engine struct {
	autoDistribute bool
	logger         *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithAutoDistribute makes RecordPayment distribute as soon as every contributor has paid.
func WithAutoDistribute(enabled bool) Option {
	return func(e *Engine) { e.autoDistribute = enabled }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AutoDistribute reports whether payments trigger distribution.
func (e *Engine) AutoDistribute() bool { return e.autoDistribute }

// CreateJob validates params and returns an open job with nobody paid.
// The ID is left empty for the store to assign.
func (e *Engine) CreateJob(p CreateJobParams) (Job, error) {
	if p.Authority == "" {
		return Job{}, errors.Wrap(ErrInvalidInput, "authority is required")
	}
	if len(p.Contributors) == 0 {
		return Job{}, errors.Wrap(ErrInvalidInput, "at least one contributor is required")
	}
	if len(p.Recipients) == 0 {
		return Job{}, errors.Wrap(ErrInvalidInput, "at least one recipient is required")
	}
	if p.AmountDue <= 0 {
		return Job{}, errors.Wrapf(ErrInvalidInput, "amount due must be positive, got %d", p.AmountDue)
	}
	if int64(len(p.Contributors)) > math.MaxInt64/p.AmountDue {
		return Job{}, errors.Wrap(ErrInvalidInput, "collected total would overflow")
	}

	seen := make(map[Identity]struct{}, len(p.Contributors))
	contributors := make([]ContributorStatus, 0, len(p.Contributors))
	for _, w := range p.Contributors {
		if w == "" {
			return Job{}, errors.Wrap(ErrInvalidInput, "empty contributor address")
		}
		if _, dup := seen[w]; dup {
			return Job{}, errors.Wrapf(ErrInvalidInput, "duplicate contributor %s", w)
		}
		seen[w] = struct{}{}
		contributors = append(contributors, ContributorStatus{Wallet: w})
	}
	for _, r := range p.Recipients {
		if r == "" {
			return Job{}, errors.Wrap(ErrInvalidInput, "empty recipient address")
		}
	}

	deadline := NoDeadline
	if p.Deadline != nil {
		deadline = *p.Deadline
	}

	return Job{
		Authority:    p.Authority,
		AmountDue:    p.AmountDue,
		Deadline:     deadline,
		Contributors: contributors,
		Recipients:   append([]Identity(nil), p.Recipients...),
	}, nil
}

// RecordPayment moves amount_due from payer into the job pool and marks the
// payer as paid. With auto-distribution enabled the payment that completes
// the job also distributes it; that distribution never fails the payment
// and is returned when it ran.
func (e *Engine) RecordPayment(ctx context.Context, job *Job, payer Identity, now int64, ledger Ledger) (*Distribution, error) {
	if job.Closed {
		return nil, errors.Wrapf(ErrJobClosed, "job %s", job.ID)
	}
	idx := job.contributorIndex(payer)
	if idx < 0 {
		return nil, errors.Wrapf(ErrNotAContributor, "%s on job %s", payer, job.ID)
	}
	if job.Contributors[idx].Paid {
		return nil, errors.Wrapf(ErrAlreadyPaid, "%s on job %s", payer, job.ID)
	}

	if err := ledger.Transfer(ctx, payer, job.ID, job.AmountDue); err != nil {
		return nil, transferFailed(err, "collect %d from %s", job.AmountDue, payer)
	}
	job.Contributors[idx].Paid = true

	e.logger.Debugw("payment recorded",
		"job_id", job.ID,
		"payer", payer,
		"amount", job.AmountDue,
		"paid_count", job.PaidCount())

	if !e.autoDistribute || !job.AllPaid() {
		return nil, nil
	}

	d, err := e.DistributeFunds(ctx, job, job.Authority, now, ledger)
	if err != nil {
		e.logger.Warnw("auto distribution failed",
			"job_id", job.ID,
			"closed", job.Closed,
			"error", err)
	}
	return d, nil
}

// DistributeFunds splits the pooled funds evenly across recipients and closes
// the job. The authority may call it at any time; anyone else only once the
// deadline has passed. The job is closed before any transfer is issued, so a
// transfer failure leaves it closed with earlier payouts in place. That error
// is marked with ErrCommitOnFailure.
func (e *Engine) DistributeFunds(ctx context.Context, job *Job, caller Identity, now int64, ledger Ledger) (*Distribution, error) {
	if job.Closed {
		return nil, errors.Wrapf(ErrJobClosed, "job %s", job.ID)
	}
	if caller != job.Authority && now < job.Deadline {
		return nil, errors.Wrapf(ErrBeforeDeadline, "caller %s at %d, deadline %s", caller, now, FormatDeadline(job.Deadline))
	}

	d := &Distribution{JobID: job.ID, PaidCount: job.PaidCount()}
	if d.PaidCount == 0 {
		job.Closed = true
		d.Complete = true
		e.logger.Infow("job closed with no payments", "job_id", job.ID, "caller", caller)
		return d, nil
	}

	d.TotalCollected = int64(d.PaidCount) * job.AmountDue
	balance, err := ledger.BalanceOf(ctx, job.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "read pool balance of %s", job.ID)
	}
	d.PoolBalance = balance
	if balance < d.TotalCollected {
		return nil, errors.WithDetailf(
			errors.Wrapf(ErrInsufficientFunds, "job %s", job.ID),
			"pool holds %d, collected total is %d", balance, d.TotalCollected)
	}

	d.Distributable = min(d.TotalCollected, balance)
	d.PerRecipient = d.Distributable / int64(len(job.Recipients))
	d.Remainder = d.Distributable - d.PerRecipient*int64(len(job.Recipients))

	job.Closed = true

	if d.PerRecipient == 0 {
		d.Complete = true
		e.logger.Infow("job closed, share rounds to zero",
			"job_id", job.ID,
			"distributable", d.Distributable,
			"recipients", len(job.Recipients))
		return d, nil
	}

	for _, r := range job.Recipients {
		if err := ledger.Transfer(ctx, job.ID, r, d.PerRecipient); err != nil {
			e.logger.Errorw("distribution aborted",
				"job_id", job.ID,
				"recipient", r,
				"completed", len(d.Transfers),
				"error", err)
			return d, errors.Mark(transferFailed(err, "pay %d to %s", d.PerRecipient, r), ErrCommitOnFailure)
		}
		d.Transfers = append(d.Transfers, Payout{Recipient: r, Amount: d.PerRecipient})
	}
	d.Complete = true

	e.logger.Infow("funds distributed",
		"job_id", job.ID,
		"caller", caller,
		"per_recipient", d.PerRecipient,
		"recipients", len(job.Recipients),
		"remainder", d.Remainder)
	return d, nil
}
