package payment_job

import core "tabpool-backend/core/payment_job"

// DevAccount is a funded wallet available when stores are seeded.
type DevAccount struct {
	Name    string        `json:"name"`
	Wallet  core.Identity `json:"wallet"`
	Balance int64         `json:"balance"`
}

// devBalance is 100 whole units at the default decimals.
const devBalance int64 = 100_000_000_000

// DevAccounts returns deterministic wallets for local development.
func DevAccounts() []DevAccount {
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	out := make([]DevAccount, 0, len(names))
	for _, n := range names {
		out = append(out, DevAccount{Name: n, Wallet: core.DeriveIdentity(n), Balance: devBalance})
	}
	return out
}
