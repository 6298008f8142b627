package payment_job

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	core "tabpool-backend/core/payment_job"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func encodeContributors(cs []core.ContributorStatus) (string, error) {
	b, err := json.Marshal(cs)
	if err != nil {
		return "", errors.Wrap(err, "encode contributors")
	}
	return string(b), nil
}

func decodeContributors(raw []byte) ([]core.ContributorStatus, error) {
	var cs []core.ContributorStatus
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, errors.Wrap(err, "decode contributors")
	}
	return cs, nil
}

func encodeRecipients(ids []core.Identity) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", errors.Wrap(err, "encode recipients")
	}
	return string(b), nil
}

func decodeRecipients(raw []byte) ([]core.Identity, error) {
	var ids []core.Identity
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errors.Wrap(err, "decode recipients")
	}
	return ids, nil
}

func toStrings(ids []core.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toIdentities(ss []string) []core.Identity {
	out := make([]core.Identity, len(ss))
	for i, s := range ss {
		out[i] = core.Identity(s)
	}
	return out
}

// filterClause builds a WHERE clause for a job filter. placeholder renders
// the n-th bind parameter in the driver's dialect.
func filterClause(f core.Filter, participant string, placeholder func(n int) string) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if f.Authority != "" {
		conds = append(conds, "authority = "+next(string(f.Authority)))
	}
	if f.Participant != "" {
		conds = append(conds, fmt.Sprintf(participant, next(string(f.Participant))))
	}
	if f.Closed != nil {
		conds = append(conds, "closed = "+next(*f.Closed))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return where, args
}
