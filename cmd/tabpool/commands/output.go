package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	core "tabpool-backend/core/payment_job"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return errors.Wrapf(core.ErrInvalidInput, "output format %q is not one of table, json, yaml", format)
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	return errors.Newf("no structured encoding for %q", format)
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func renderSummary(w io.Writer, format string, s core.Summary, decimals int) error {
	if format != formatTable {
		return writeStructured(w, format, s)
	}
	data := pterm.TableData{
		{"Field", "Value"},
		{"Job", s.JobID.String()},
		{"Authority", s.Authority.String()},
		{"Status", s.Status},
		{"Paid", fmt.Sprintf("%d/%d", s.PaidCount, s.Contributors)},
		{"Amount due", core.FormatAmount(s.AmountDue, decimals)},
		{"Collected", core.FormatAmount(s.Collected, decimals) + " / " + core.FormatAmount(s.Expected, decimals)},
		{"Recipients", strconv.Itoa(s.Recipients)},
		{"Deadline", s.Deadline},
	}
	if s.PoolBalance != nil {
		data = append(data, []string{"Pool balance", core.FormatAmount(*s.PoolBalance, decimals)})
	}
	for _, id := range s.Outstanding {
		data = append(data, []string{"Outstanding", id.String()})
	}
	return renderTable(w, data)
}

func renderJobs(w io.Writer, format string, jobs []core.Job, decimals int) error {
	summaries := make([]core.Summary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, core.Summarize(j))
	}
	if format != formatTable {
		return writeStructured(w, format, summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, pterm.Info.Sprint("No jobs found"))
		return nil
	}
	data := pterm.TableData{{"Job", "Authority", "Status", "Paid", "Amount due", "Deadline"}}
	for _, s := range summaries {
		data = append(data, []string{
			s.JobID.String(),
			s.Authority.Short(),
			s.Status,
			fmt.Sprintf("%d/%d", s.PaidCount, s.Contributors),
			core.FormatAmount(s.AmountDue, decimals),
			s.Deadline,
		})
	}
	return renderTable(w, data)
}

func renderDistribution(w io.Writer, d *core.Distribution, decimals int) error {
	if d == nil {
		return nil
	}
	if len(d.Transfers) == 0 {
		fmt.Fprintln(w, pterm.Info.Sprintf("No payouts (paid %d, pool %s)", d.PaidCount, core.FormatAmount(d.PoolBalance, decimals)))
		return nil
	}
	data := pterm.TableData{{"Recipient", "Amount"}}
	for _, p := range d.Transfers {
		data = append(data, []string{p.Recipient.String(), core.FormatAmount(p.Amount, decimals)})
	}
	if err := renderTable(w, data); err != nil {
		return err
	}
	if d.Remainder > 0 {
		fmt.Fprintln(w, pterm.Info.Sprintf("%s remains in the pool", core.FormatAmount(d.Remainder, decimals)))
	}
	return nil
}

func success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, pterm.Success.Sprintf(format, args...))
}

func warning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, pterm.Warning.Sprintf(format, args...))
}
