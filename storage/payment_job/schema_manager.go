package payment_job

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaManager creates the Postgres tables used by PGStore.
type SchemaManager struct {
	pool *pgxpool.Pool
}

// NewSchemaManager creates a new schema manager
func NewSchemaManager(pool *pgxpool.Pool) *SchemaManager {
	return &SchemaManager{pool: pool}
}

// Initialize creates the database schema
func (m *SchemaManager) Initialize(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, pgSchema)
	return err
}

const pgSchema = `
-- Jobs: contributors are kept as an ordered JSON array of {wallet, paid}
CREATE TABLE IF NOT EXISTS tab_jobs (
  job_id TEXT PRIMARY KEY,
  authority TEXT NOT NULL,
  amount_due BIGINT NOT NULL CHECK (amount_due > 0),
  deadline BIGINT NOT NULL,
  closed BOOLEAN NOT NULL DEFAULT false,
  contributors JSONB NOT NULL,
  recipients TEXT[] NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Ledger balances, including job pools
CREATE TABLE IF NOT EXISTS tab_balances (
  account TEXT PRIMARY KEY,
  balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

-- Transfer audit trail
CREATE TABLE IF NOT EXISTS tab_transfers (
  id BIGSERIAL PRIMARY KEY,
  job_id TEXT,
  from_account TEXT,
  to_account TEXT NOT NULL,
  amount BIGINT NOT NULL,
  kind TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tab_jobs_authority ON tab_jobs(authority);
CREATE INDEX IF NOT EXISTS idx_tab_jobs_closed ON tab_jobs(closed);
CREATE INDEX IF NOT EXISTS idx_tab_transfers_job ON tab_transfers(job_id, id);
`
