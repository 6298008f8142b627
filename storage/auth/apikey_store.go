package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	core "tabpool-backend/core/payment_job"
)

var (
	ErrKeyRequired    = errors.New("api key required")
	ErrWalletRequired = errors.New("wallet required")
	ErrKeyNotFound    = errors.New("api key not found")
)

// APIKey is an issued API key and the wallet it acts as.
type APIKey struct {
	Key       string        `json:"key"`
	Label     string        `json:"label,omitempty"`
	Wallet    core.Identity `json:"wallet"`
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source,omitempty"` // e.g. "config", "env", "issued"
}

// APIKeyValidator resolves an API key to its record.
type APIKeyValidator interface {
	Lookup(ctx context.Context, key string) (APIKey, bool)
}

// APIKeyIssuer allows creating new API keys.
type APIKeyIssuer interface {
	Issue(ctx context.Context, label string, wallet core.Identity, source string) (APIKey, error)
}

// APIKeyStore provides in-memory API key validation/issuance.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// NewAPIKeyStore constructs an empty store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]APIKey)}
}

// Seed adds a pre-existing key bound to wallet.
func (s *APIKeyStore) Seed(key string, wallet core.Identity, label, source string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrKeyRequired
	}
	if wallet == "" {
		return errors.Wrapf(ErrWalletRequired, "key %q", label)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = APIKey{Key: key, Label: label, Wallet: wallet, Source: source, CreatedAt: time.Now()}
	return nil
}

// Lookup returns the stored record for a key, if present.
func (s *APIKeyStore) Lookup(_ context.Context, key string) (APIKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[key]
	return rec, ok
}

// Issue creates and stores a new API key.
func (s *APIKeyStore) Issue(_ context.Context, label string, wallet core.Identity, source string) (APIKey, error) {
	if wallet == "" {
		return APIKey{}, ErrWalletRequired
	}
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{Key: key, Label: label, Wallet: wallet, Source: source, CreatedAt: time.Now()}
	s.mu.Lock()
	s.keys[key] = rec
	s.mu.Unlock()
	return rec, nil
}

// Revoke removes a key.
func (s *APIKeyStore) Revoke(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return ErrKeyNotFound
	}
	delete(s.keys, key)
	return nil
}

// Len returns the number of keys.
func (s *APIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func generateKey() (string, error) {
	b := make([]byte, 32) // 256-bit key
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate api key")
	}
	return hex.EncodeToString(b), nil
}
