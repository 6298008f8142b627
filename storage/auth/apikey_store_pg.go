package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
)

// hashKey is what gets stored; plaintext keys never reach the database.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// PGAPIKeyStore persists API keys in Postgres.
type PGAPIKeyStore struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPGAPIKeyStore connects and initializes schema.
func NewPGAPIKeyStore(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PGAPIKeyStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &PGAPIKeyStore{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGAPIKeyStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS tab_api_keys (
  key_hash TEXT PRIMARY KEY,
  label TEXT NOT NULL DEFAULT '',
  wallet TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, schema)
	return errors.Wrap(err, "init api key schema")
}

// Lookup implements APIKeyValidator.
func (s *PGAPIKeyStore) Lookup(ctx context.Context, key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	rec := APIKey{Key: key}
	var wallet string
	err := s.pool.QueryRow(ctx,
		"SELECT label, wallet, source, created_at FROM tab_api_keys WHERE key_hash=$1",
		hashKey(key),
	).Scan(&rec.Label, &wallet, &rec.Source, &rec.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warnw("api key lookup failed", "error", err)
		}
		return APIKey{}, false
	}
	rec.Wallet = core.Identity(wallet)
	return rec, true
}

// Issue implements APIKeyIssuer.
func (s *PGAPIKeyStore) Issue(ctx context.Context, label string, wallet core.Identity, source string) (APIKey, error) {
	if wallet == "" {
		return APIKey{}, ErrWalletRequired
	}
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{Key: key, Label: label, Wallet: wallet, Source: source, CreatedAt: time.Now().UTC()}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO tab_api_keys (key_hash, label, wallet, source, created_at) VALUES ($1,$2,$3,$4,$5)",
		hashKey(key), rec.Label, rec.Wallet.String(), rec.Source, rec.CreatedAt)
	if err != nil {
		return APIKey{}, errors.Wrap(err, "insert api key")
	}
	return rec, nil
}

// Seed inserts or rebinds a provided key.
func (s *PGAPIKeyStore) Seed(ctx context.Context, key string, wallet core.Identity, label, source string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrKeyRequired
	}
	if wallet == "" {
		return errors.Wrapf(ErrWalletRequired, "key %q", label)
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO tab_api_keys (key_hash, label, wallet, source, created_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (key_hash) DO UPDATE SET wallet=EXCLUDED.wallet, label=EXCLUDED.label`,
		hashKey(key), label, wallet.String(), source)
	return errors.Wrap(err, "seed api key")
}

// Revoke removes a key.
func (s *PGAPIKeyStore) Revoke(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tab_api_keys WHERE key_hash=$1", hashKey(key))
	if err != nil {
		return errors.Wrap(err, "revoke api key")
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Close releases the pool.
func (s *PGAPIKeyStore) Close() {
	s.pool.Close()
}
