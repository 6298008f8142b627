package payment_job

import (
	"math"
	"slices"
	"time"
)

// NoDeadline marks a job that never opens distribution to non-authority callers.
const NoDeadline int64 = math.MaxInt64

// Identity is an account address on the ledger. Wallets, authorities and
// job pools all share the same address space.
type Identity string

// String returns the base58 text of the identity.
func (id Identity) String() string { return string(id) }

// Short abbreviates long identities for terminal output.
func (id Identity) Short() string {
	s := string(id)
	if len(s) <= 12 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// ContributorStatus tracks whether one contributor has paid their share.
type ContributorStatus struct {
	Wallet Identity `json:"wallet" yaml:"wallet"`
	Paid   bool     `json:"paid" yaml:"paid"`
}

// Job is a single pooling agreement. The pooled balance is held by the
// ledger under the job's own ID and is not duplicated here.
type Job struct {
	ID           Identity            `json:"id" yaml:"id"`
	Authority    Identity            `json:"authority" yaml:"authority"`
	AmountDue    int64               `json:"amount_due" yaml:"amount_due"`
	Deadline     int64               `json:"deadline" yaml:"deadline"`
	Closed       bool                `json:"closed" yaml:"closed"`
	Contributors []ContributorStatus `json:"contributors" yaml:"contributors"`
	Recipients   []Identity          `json:"recipients" yaml:"recipients"`
	CreatedAt    time.Time           `json:"created_at" yaml:"created_at"`
}

// PaidCount returns the number of contributors that have paid.
func (j *Job) PaidCount() int {
	n := 0
	for _, c := range j.Contributors {
		if c.Paid {
			n++
		}
	}
	return n
}

// AllPaid reports whether every contributor has paid.
func (j *Job) AllPaid() bool {
	return j.PaidCount() == len(j.Contributors)
}

// HasDeadline reports whether a deadline was supplied at creation.
func (j *Job) HasDeadline() bool {
	return j.Deadline != NoDeadline
}

// Outstanding lists contributors that still owe their share, in stored order.
func (j *Job) Outstanding() []Identity {
	var out []Identity
	for _, c := range j.Contributors {
		if !c.Paid {
			out = append(out, c.Wallet)
		}
	}
	return out
}

// IsParticipant reports whether id is the authority, a contributor or a recipient.
func (j *Job) IsParticipant(id Identity) bool {
	if j.Authority == id || slices.Contains(j.Recipients, id) {
		return true
	}
	return j.contributorIndex(id) >= 0
}

func (j *Job) contributorIndex(wallet Identity) int {
	return slices.IndexFunc(j.Contributors, func(c ContributorStatus) bool {
		return c.Wallet == wallet
	})
}

// Clone returns a deep copy so stores can hand out jobs without sharing slices.
func (j Job) Clone() Job {
	j.Contributors = slices.Clone(j.Contributors)
	j.Recipients = slices.Clone(j.Recipients)
	return j
}

// Payout is one executed transfer out of a job pool.
type Payout struct {
	Recipient Identity `json:"recipient" yaml:"recipient"`
	Amount    int64    `json:"amount" yaml:"amount"`
}

// Distribution describes what a DistributeFunds call computed and executed.
type Distribution struct {
	JobID          Identity `json:"job_id" yaml:"job_id"`
	PaidCount      int      `json:"paid_count" yaml:"paid_count"`
	TotalCollected int64    `json:"total_collected" yaml:"total_collected"`
	PoolBalance    int64    `json:"pool_balance" yaml:"pool_balance"`
	Distributable  int64    `json:"distributable" yaml:"distributable"`
	PerRecipient   int64    `json:"per_recipient" yaml:"per_recipient"`
	Remainder      int64    `json:"remainder" yaml:"remainder"`
	Transfers      []Payout `json:"transfers" yaml:"transfers"`
	Complete       bool     `json:"complete" yaml:"complete"`
}

// Distributed sums the amounts actually moved out of the pool.
func (d *Distribution) Distributed() int64 {
	var total int64
	for _, p := range d.Transfers {
		total += p.Amount
	}
	return total
}

// CreateJobParams carries the caller-supplied fields of a new job.
type CreateJobParams struct {
	Contributors []Identity
	Recipients   []Identity
	AmountDue    int64
	Deadline     *int64
	Authority    Identity
}

// Filter narrows job listings. Zero values match everything.
type Filter struct {
	Authority   Identity `json:"authority,omitempty"`
	Participant Identity `json:"participant,omitempty"`
	Closed      *bool    `json:"closed,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// Matches reports whether the job satisfies the filter.
func (f Filter) Matches(j Job) bool {
	if f.Authority != "" && j.Authority != f.Authority {
		return false
	}
	if f.Participant != "" && !j.IsParticipant(f.Participant) {
		return false
	}
	if f.Closed != nil && j.Closed != *f.Closed {
		return false
	}
	return true
}

// Transfer kinds recorded in the ledger audit trail.
const (
	TransferContribution = "contribution"
	TransferDistribution = "distribution"
	TransferDeposit      = "deposit"
)

// TransferRecord is one ledger movement kept for auditing.
type TransferRecord struct {
	ID        int64     `json:"id" yaml:"id"`
	JobID     Identity  `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	From      Identity  `json:"from,omitempty" yaml:"from,omitempty"`
	To        Identity  `json:"to" yaml:"to"`
	Amount    int64     `json:"amount" yaml:"amount"`
	Kind      string    `json:"kind" yaml:"kind"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// KindFor classifies a transfer relative to the job whose pool it touches.
func KindFor(jobID, from, to Identity) string {
	switch {
	case from == "":
		return TransferDeposit
	case from == jobID:
		return TransferDistribution
	default:
		return TransferContribution
	}
}

// Event is a lightweight activity entry for pool actions.
type Event struct {
	Type      string    `json:"type"` // job_created | payment_recorded | funds_distributed
	JobID     Identity  `json:"job_id"`
	Actor     Identity  `json:"actor"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
