package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/metrics"
	jobstore "tabpool-backend/storage/payment_job"
)

// ErrFaucetDisabled is returned by Deposit when minting is switched off.
var ErrFaucetDisabled = errors.New("faucet is disabled")

// errAutoDistributionIncomplete is recorded when a payment-triggered
// distribution stopped after some payouts. The payment itself succeeded.
var errAutoDistributionIncomplete = errors.Mark(errors.New("auto distribution incomplete"), core.ErrTransferFailed)

// PoolService runs engine operations against a store, one atomic store
// update per request, and records the outcome in logs, metrics and events.
type PoolService struct {
	store   jobstore.Store
	engine  *core.Engine
	clock   core.Clock
	cache   *jobstore.JobCache
	events  *EventLog
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	faucet  bool
}

// PoolServiceConfig wires a PoolService. Only Store is required.
type PoolServiceConfig struct {
	Store         jobstore.Store
	Engine        *core.Engine
	Clock         core.Clock
	Cache         *jobstore.JobCache
	Events        *EventLog
	Metrics       *metrics.Metrics
	Logger        *zap.SugaredLogger
	FaucetEnabled bool
}

// NewPoolService creates a pool service, filling in defaults for unset collaborators.
func NewPoolService(cfg PoolServiceConfig) *PoolService {
	s := &PoolService{
		store:   cfg.Store,
		engine:  cfg.Engine,
		clock:   cfg.Clock,
		cache:   cfg.Cache,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		faucet:  cfg.FaucetEnabled,
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	if s.engine == nil {
		s.engine = core.NewEngine(core.WithLogger(s.logger))
	}
	if s.clock == nil {
		s.clock = core.SystemClock{}
	}
	if s.events == nil {
		s.events = NewEventLog(0)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Outcome is the job state after a payment or distribution, plus the
// distribution it triggered, if any.
type Outcome struct {
	Job          core.Job           `json:"job"`
	Distribution *core.Distribution `json:"distribution,omitempty"`
}

// CreateJob validates and stores a new job owned by p.Authority.
func (s *PoolService) CreateJob(ctx context.Context, p core.CreateJobParams) (core.Job, error) {
	job, err := s.engine.CreateJob(p)
	if err != nil {
		return core.Job{}, err
	}
	id, err := s.store.Create(ctx, job)
	if err != nil {
		return core.Job{}, errors.Wrap(err, "store job")
	}
	created, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Job{}, err
	}

	s.metrics.JobsCreated.Inc()
	s.publish("job_created", id, p.Authority,
		fmt.Sprintf("%d contributors owe %d each, %d recipients", len(p.Contributors), p.AmountDue, len(p.Recipients)))
	s.logger.Infow("job created",
		"job_id", id,
		"authority", p.Authority,
		"amount_due", p.AmountDue,
		"contributors", len(p.Contributors),
		"recipients", len(p.Recipients),
		"deadline", core.FormatDeadline(created.Deadline))
	return created, nil
}

// GetJob returns a job, served from cache when fresh.
func (s *PoolService) GetJob(ctx context.Context, id core.Identity) (core.Job, error) {
	if s.cache == nil {
		return s.store.Get(ctx, id)
	}
	if job, ok := s.cache.Get(id); ok {
		return job, nil
	}
	epoch := s.cache.Epoch()
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Job{}, err
	}
	s.cache.Set(job, epoch)
	return job, nil
}

// Status summarizes a job together with its current pool balance.
func (s *PoolService) Status(ctx context.Context, id core.Identity) (core.Summary, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return core.Summary{}, err
	}
	balance, err := s.store.BalanceOf(ctx, id)
	if err != nil {
		return core.Summary{}, err
	}
	summary := core.Summarize(job)
	summary.PoolBalance = &balance
	return summary, nil
}

// Pay records payer's contribution to a job.
func (s *PoolService) Pay(ctx context.Context, id, payer core.Identity) (Outcome, error) {
	now := s.clock.Now()
	var out Outcome
	err := s.store.Update(ctx, id, func(ctx context.Context, job *core.Job, ledger core.Ledger) error {
		d, err := s.engine.RecordPayment(ctx, job, payer, now, ledger)
		out = Outcome{Job: job.Clone(), Distribution: d}
		return err
	})
	s.invalidate(id)
	s.metrics.Payments.WithLabelValues(metrics.Result(core.Code(err))).Inc()
	if err != nil {
		s.logger.Infow("payment rejected", "job_id", id, "payer", payer, "error_code", core.Code(err), "error", err)
		return Outcome{}, err
	}

	s.publish("payment_recorded", id, payer,
		fmt.Sprintf("%d of %d contributors paid", out.Job.PaidCount(), len(out.Job.Contributors)))
	s.logger.Infow("payment recorded", "job_id", id, "payer", payer, "amount", out.Job.AmountDue)
	if d := out.Distribution; d != nil {
		var distErr error
		if !d.Complete {
			distErr = errAutoDistributionIncomplete
		}
		s.recordDistribution(id, out.Job.Authority, d, distErr)
	}
	return out, nil
}

// Distribute splits a job's pool across its recipients on behalf of caller.
// When a payout fails midway the returned Outcome still carries the closed
// job and the payouts that went through.
func (s *PoolService) Distribute(ctx context.Context, id, caller core.Identity) (Outcome, error) {
	now := s.clock.Now()
	var out Outcome
	err := s.store.Update(ctx, id, func(ctx context.Context, job *core.Job, ledger core.Ledger) error {
		d, err := s.engine.DistributeFunds(ctx, job, caller, now, ledger)
		out = Outcome{Job: job.Clone(), Distribution: d}
		return err
	})
	s.invalidate(id)
	if err != nil && !core.ShouldCommit(err) {
		s.metrics.Distributions.WithLabelValues(metrics.Result(core.Code(err))).Inc()
		s.logger.Infow("distribution rejected", "job_id", id, "caller", caller, "error_code", core.Code(err), "error", err)
		return Outcome{}, err
	}
	s.recordDistribution(id, caller, out.Distribution, err)
	return out, err
}

func (s *PoolService) recordDistribution(id, caller core.Identity, d *core.Distribution, err error) {
	s.metrics.Distributions.WithLabelValues(metrics.Result(core.Code(err))).Inc()
	if d == nil {
		return
	}
	s.metrics.DistributedAmount.Add(float64(d.Distributed()))

	msg := fmt.Sprintf("paid %d to each of %d recipients, %d left in pool", d.PerRecipient, len(d.Transfers), d.Remainder)
	if err != nil {
		msg = fmt.Sprintf("aborted after %d payouts: %v", len(d.Transfers), err)
		s.logger.Errorw("distribution incomplete", "job_id", id, "caller", caller, "payouts", len(d.Transfers), "error", err)
	} else {
		s.logger.Infow("funds distributed", "job_id", id, "caller", caller, "per_recipient", d.PerRecipient, "remainder", d.Remainder)
	}
	s.publish("funds_distributed", id, caller, msg)
}

// ListJobs returns jobs matching filter, newest first.
func (s *PoolService) ListJobs(ctx context.Context, filter core.Filter) ([]core.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// Transfers returns the ledger audit trail of a job.
func (s *PoolService) Transfers(ctx context.Context, id core.Identity) ([]core.TransferRecord, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTransfers(ctx, id)
}

// Balance returns the ledger balance of any account, job pools included.
func (s *PoolService) Balance(ctx context.Context, account core.Identity) (int64, error) {
	return s.store.BalanceOf(ctx, account)
}

// Deposit mints funds into an account when the faucet is enabled.
func (s *PoolService) Deposit(ctx context.Context, account core.Identity, amount int64) (int64, error) {
	if !s.faucet {
		return 0, ErrFaucetDisabled
	}
	balance, err := s.store.Deposit(ctx, account, amount)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("faucet deposit", "account", account, "amount", amount, "balance", balance)
	return balance, nil
}

// FaucetEnabled reports whether Deposit is allowed.
func (s *PoolService) FaucetEnabled() bool { return s.faucet }

// Events returns up to n recent pool events, newest first.
func (s *PoolService) Events(n int) []core.Event {
	return s.events.Recent(n)
}

// Subscribe streams events published after the call; see EventLog.Subscribe.
func (s *PoolService) Subscribe(buffer int) (<-chan core.Event, func()) {
	return s.events.Subscribe(buffer)
}

// Ping checks the backing store.
func (s *PoolService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *PoolService) invalidate(id core.Identity) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

func (s *PoolService) publish(kind string, id, actor core.Identity, msg string) {
	s.events.Publish(core.Event{
		Type:      kind,
		JobID:     id,
		Actor:     actor,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	})
}
