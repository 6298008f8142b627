package payment_job

import (
	"crypto/rand"
	"crypto/sha256"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mr-tron/base58"
)

// IdentitySize is the byte length of a decoded account address.
const IdentitySize = 32

// ParseIdentity decodes a base58 account address and rejects anything that
// is not exactly IdentitySize bytes.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.Wrap(ErrInvalidInput, "empty address")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidInput, "address %q is not base58", s)
	}
	if len(raw) != IdentitySize {
		return "", errors.Wrapf(ErrInvalidInput, "address %q decodes to %d bytes, want %d", s, len(raw), IdentitySize)
	}
	return Identity(s), nil
}

// ParseIdentities parses a comma separated list of addresses.
func ParseIdentities(csv string) ([]Identity, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "empty address list")
	}
	parts := strings.Split(csv, ",")
	out := make([]Identity, 0, len(parts))
	for _, p := range parts {
		id, err := ParseIdentity(p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// ParseIdentityList parses each entry of an already split list.
func ParseIdentityList(items []string) ([]Identity, error) {
	out := make([]Identity, 0, len(items))
	for _, item := range items {
		id, err := ParseIdentity(item)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// NewIdentity returns a fresh random address, used for job pools.
func NewIdentity() (Identity, error) {
	b := make([]byte, IdentitySize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate address")
	}
	return Identity(base58.Encode(b)), nil
}

// DeriveIdentity returns a deterministic address for a label. Dev fixtures
// and tests use it to get stable, valid wallets.
func DeriveIdentity(label string) Identity {
	sum := sha256.Sum256([]byte("tabpool:" + label))
	return Identity(base58.Encode(sum[:]))
}
