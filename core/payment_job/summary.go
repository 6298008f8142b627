package payment_job

import (
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultDecimals converts between whole units and the smallest ledger unit.
const DefaultDecimals = 9

// decimalAmount is the only accepted amount syntax: digits with an optional fraction.
var decimalAmount = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Summary is the human-facing status of a job.
type Summary struct {
	JobID        Identity   `json:"job_id" yaml:"job_id"`
	Authority    Identity   `json:"authority" yaml:"authority"`
	Status       string     `json:"status" yaml:"status"` // open | closed
	PaidCount    int        `json:"paid_count" yaml:"paid_count"`
	Contributors int        `json:"contributors" yaml:"contributors"`
	Recipients   int        `json:"recipients" yaml:"recipients"`
	AmountDue    int64      `json:"amount_due" yaml:"amount_due"`
	Collected    int64      `json:"collected" yaml:"collected"`
	Expected     int64      `json:"expected" yaml:"expected"`
	Deadline     string     `json:"deadline" yaml:"deadline"`
	Outstanding  []Identity `json:"outstanding,omitempty" yaml:"outstanding,omitempty"`
	PoolBalance  *int64     `json:"pool_balance,omitempty" yaml:"pool_balance,omitempty"`
}

// Summarize builds the status view of a job.
func Summarize(job Job) Summary {
	paid := job.PaidCount()
	status := "open"
	if job.Closed {
		status = "closed"
	}
	return Summary{
		JobID:        job.ID,
		Authority:    job.Authority,
		Status:       status,
		PaidCount:    paid,
		Contributors: len(job.Contributors),
		Recipients:   len(job.Recipients),
		AmountDue:    job.AmountDue,
		Collected:    int64(paid) * job.AmountDue,
		Expected:     int64(len(job.Contributors)) * job.AmountDue,
		Deadline:     FormatDeadline(job.Deadline),
		Outstanding:  job.Outstanding(),
	}
}

// FormatDeadline renders a unix deadline, or "No deadline" for NoDeadline.
func FormatDeadline(deadline int64) string {
	if deadline == NoDeadline {
		return "No deadline"
	}
	return time.Unix(deadline, 0).UTC().Format(time.RFC3339)
}

// ParseAmount converts a decimal amount in whole units ("1.5") into the
// smallest unit using the given number of fractional digits. Parsing is
// exact; more fractional digits than decimals is an error.
func ParseAmount(s string, decimals int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(ErrInvalidInput, "empty amount")
	}
	if !decimalAmount.MatchString(s) {
		return 0, errors.Wrapf(ErrInvalidInput, "amount %q is not a plain decimal", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidInput, "amount %q is not a number", s)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return 0, errors.Wrapf(ErrInvalidInput, "amount %q has more than %d decimal places", s, decimals)
	}
	n := r.Num()
	if n.Sign() <= 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "amount %q must be positive", s)
	}
	if !n.IsInt64() {
		return 0, errors.Wrapf(ErrInvalidInput, "amount %q is too large", s)
	}
	return n.Int64(), nil
}

// FormatAmount renders a smallest-unit amount as a trimmed decimal string.
func FormatAmount(v int64, decimals int) string {
	if decimals <= 0 {
		return big.NewInt(v).String()
	}
	r := new(big.Rat).SetFrac(big.NewInt(v),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out := r.FloatString(decimals)
	if strings.Contains(out, ".") {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, ".")
	}
	return out
}
