package payment_job

import (
	"context"
	"time"
)

// Ledger moves funds between accounts. Transfer must be atomic: on error no
// balance changes. Underfunded senders yield ErrInsufficientBalance.
type Ledger interface {
	Transfer(ctx context.Context, from, to Identity, amount int64) error
	BalanceOf(ctx context.Context, account Identity) (int64, error)
}

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() int64 { return time.Now().Unix() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

// Now implements Clock.
func (f ClockFunc) Now() int64 { return f() }

// UpdateFunc mutates a job inside a store's atomic unit. The ledger it
// receives is bound to the same unit, so its transfers commit or roll back
// together with the job record.
type UpdateFunc func(ctx context.Context, job *Job, ledger Ledger) error

// JobStore persists jobs and serializes writers per job.
//
// Update loads the job, runs fn and persists the result when
// ShouldCommit(err) holds; otherwise every change made by fn is discarded.
// The error from fn is returned unchanged.
type JobStore interface {
	Create(ctx context.Context, job Job) (Identity, error)
	Get(ctx context.Context, id Identity) (Job, error)
	Put(ctx context.Context, job Job) error
	Update(ctx context.Context, id Identity, fn UpdateFunc) error
}
