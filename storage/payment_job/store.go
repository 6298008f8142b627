package payment_job

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
)

// Store is a JobStore that also owns the ledger backing the job pools.
type Store interface {
	core.JobStore
	ListJobs(ctx context.Context, filter core.Filter) ([]core.Job, error)
	ListTransfers(ctx context.Context, jobID core.Identity) ([]core.TransferRecord, error)
	BalanceOf(ctx context.Context, account core.Identity) (int64, error)
	Deposit(ctx context.Context, account core.Identity, amount int64) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a store backend.
type Options struct {
	Driver     string // memory | postgres | sqlite
	PGDSN      string
	SQLitePath string
	Seed       bool
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *zap.SugaredLogger) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(opts.Seed), nil
	case "postgres", "pg":
		if opts.PGDSN == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
		return NewPGStore(ctx, opts.PGDSN, opts.Seed, logger)
	case "sqlite", "sqlite3":
		path := opts.SQLitePath
		if path == "" {
			path = "tabpool.db"
		}
		return NewSQLiteStore(ctx, path, opts.Seed, logger)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", opts.Driver)
	}
}
