package commands

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tabpool-backend/container"
	core "tabpool-backend/core/payment_job"
)

// NewCreateCmd builds the create command.
func NewCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a payment job owned by your wallet",
		Long: `Create a payment job. Every contributor owes the same amount into the
job pool; once the pool is distributed it is split evenly across recipients.
The job authority is the wallet given by --wallet.

Examples:
  tabpool create --contributors A,B --recipients C --amount 0.5
  tabpool create --contributors A --recipients B,C --amount-due 500000 --deadline-in 72h`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}
	cmd.Flags().StringSlice("contributors", nil, "Contributor wallet addresses (comma separated)")
	cmd.Flags().StringSlice("recipients", nil, "Recipient wallet addresses (comma separated)")
	cmd.Flags().String("amount", "", "Amount each contributor owes, in whole units")
	cmd.Flags().Int64("amount-due", 0, "Amount each contributor owes, in smallest units")
	cmd.Flags().Int64("deadline", 0, "Unix timestamp after which anyone may distribute")
	cmd.Flags().Duration("deadline-in", 0, "Deadline relative to now, e.g. 48h")
	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
	_ = cmd.MarkFlagRequired("contributors")
	_ = cmd.MarkFlagRequired("recipients")
	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}
	authority, err := callerWallet()
	if err != nil {
		return err
	}

	rawContributors, _ := cmd.Flags().GetStringSlice("contributors")
	rawRecipients, _ := cmd.Flags().GetStringSlice("recipients")
	contributors, err := core.ParseIdentityList(rawContributors)
	if err != nil {
		return errors.Wrap(err, "contributors")
	}
	recipients, err := core.ParseIdentityList(rawRecipients)
	if err != nil {
		return errors.Wrap(err, "recipients")
	}

	amount, err := amountFlags(cmd)
	if err != nil {
		return err
	}
	deadline, err := deadlineFlags(cmd, time.Now())
	if err != nil {
		return err
	}

	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		job, err := c.PoolService.CreateJob(ctx, core.CreateJobParams{
			Contributors: contributors,
			Recipients:   recipients,
			AmountDue:    amount,
			Deadline:     deadline,
			Authority:    authority,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if format == formatTable {
			success(out, "Created job %s", job.ID)
		}
		return renderSummary(out, format, core.Summarize(job), c.Config.QR.Decimals)
	})
}

// amountFlags resolves --amount or --amount-due into smallest units.
func amountFlags(cmd *cobra.Command) (int64, error) {
	decimal, _ := cmd.Flags().GetString("amount")
	units, _ := cmd.Flags().GetInt64("amount-due")
	decimal = strings.TrimSpace(decimal)
	switch {
	case decimal != "" && units != 0:
		return 0, errors.Wrap(core.ErrInvalidInput, "pass --amount or --amount-due, not both")
	case decimal != "":
		return core.ParseAmount(decimal, cfg.QR.Decimals)
	case units > 0:
		return units, nil
	}
	return 0, errors.Wrap(core.ErrInvalidInput, "a positive --amount or --amount-due is required")
}

func deadlineFlags(cmd *cobra.Command, now time.Time) (*int64, error) {
	abs, _ := cmd.Flags().GetInt64("deadline")
	rel, _ := cmd.Flags().GetDuration("deadline-in")
	switch {
	case abs != 0 && rel != 0:
		return nil, errors.Wrap(core.ErrInvalidInput, "pass --deadline or --deadline-in, not both")
	case abs != 0:
		return &abs, nil
	case rel != 0:
		d := now.Add(rel).Unix()
		return &d, nil
	}
	return nil, nil
}

// NewPayCmd builds the pay command.
func NewPayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay JOB_ID",
		Short: "Pay your share into a job pool",
		Long: `Transfer the job's amount due from your wallet into the job pool and mark
you as paid.

Examples:
  tabpool pay 7Xf3... --wallet <your address>`,
		Args: cobra.ExactArgs(1),
		RunE: runPay,
	}
}

func runPay(cmd *cobra.Command, args []string) error {
	payer, err := callerWallet()
	if err != nil {
		return err
	}
	id, err := jobArg(args)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		res, err := c.PoolService.Pay(ctx, id, payer)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		decimals := c.Config.QR.Decimals
		success(out, "Paid %s into job %s (%d/%d paid)",
			core.FormatAmount(res.Job.AmountDue, decimals), id, res.Job.PaidCount(), len(res.Job.Contributors))
		if d := res.Distribution; d != nil {
			if d.Complete {
				success(out, "All contributors paid; job distributed")
			} else {
				warning(out, "All contributors paid; job %s closed but distribution stopped after %d payouts", id, len(d.Transfers))
			}
			return renderDistribution(out, d, decimals)
		}
		return nil
	})
}

// NewStatusCmd builds the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the payment status of a job",
		Long: `Show who has paid, how much has been collected, and the deadline of a job.

Examples:
  tabpool status 7Xf3...
  tabpool status 7Xf3... -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}
	id, err := jobArg(args)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		summary, err := c.PoolService.Status(ctx, id)
		if err != nil {
			return err
		}
		return renderSummary(cmd.OutOrStdout(), format, summary, c.Config.QR.Decimals)
	})
}

// NewDistributeCmd builds the distribute command.
func NewDistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute JOB_ID",
		Short: "Split a job pool across its recipients and close the job",
		Long: `Close the job and pay each recipient an equal share of what was collected.
The authority may distribute at any time; anyone else only after the deadline.

Examples:
  tabpool distribute 7Xf3...`,
		Args: cobra.ExactArgs(1),
		RunE: runDistribute,
	}
}

func runDistribute(cmd *cobra.Command, args []string) error {
	caller, err := callerWallet()
	if err != nil {
		return err
	}
	id, err := jobArg(args)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		res, err := c.PoolService.Distribute(ctx, id, caller)
		out := cmd.OutOrStdout()
		decimals := c.Config.QR.Decimals
		if err != nil {
			if core.ShouldCommit(err) && res.Distribution != nil {
				warning(out, "Job %s closed but distribution stopped after %d payouts", id, len(res.Distribution.Transfers))
				_ = renderDistribution(out, res.Distribution, decimals)
			}
			return err
		}
		success(out, "Distributed job %s", id)
		return renderDistribution(out, res.Distribution, decimals)
	})
}

// NewListCmd builds the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payment jobs",
		Long: `List jobs, newest first.

Examples:
  tabpool list --mine
  tabpool list --participant <address> --status open -o json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
	cmd.Flags().Bool("mine", false, "Only jobs owned by your wallet")
	cmd.Flags().String("authority", "", "Only jobs owned by this wallet")
	cmd.Flags().String("participant", "", "Only jobs where this wallet contributes or receives")
	cmd.Flags().String("status", "", "open or closed")
	cmd.Flags().Int("limit", 50, "Maximum number of jobs")
	cmd.Flags().StringP("output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	if err := checkFormat(format); err != nil {
		return err
	}
	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		jobs, err := c.PoolService.ListJobs(ctx, filter)
		if err != nil {
			return err
		}
		return renderJobs(cmd.OutOrStdout(), format, jobs, c.Config.QR.Decimals)
	})
}

func listFilter(cmd *cobra.Command) (core.Filter, error) {
	var filter core.Filter
	var err error

	mine, _ := cmd.Flags().GetBool("mine")
	authority, _ := cmd.Flags().GetString("authority")
	participant, _ := cmd.Flags().GetString("participant")
	status, _ := cmd.Flags().GetString("status")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	switch {
	case mine && authority != "":
		return filter, errors.Wrap(core.ErrInvalidInput, "pass --mine or --authority, not both")
	case mine:
		if filter.Authority, err = callerWallet(); err != nil {
			return filter, err
		}
	case authority != "":
		if filter.Authority, err = core.ParseIdentity(authority); err != nil {
			return filter, errors.Wrap(err, "authority")
		}
	}
	if participant != "" {
		if filter.Participant, err = core.ParseIdentity(participant); err != nil {
			return filter, errors.Wrap(err, "participant")
		}
	}
	switch status {
	case "":
	case "open", "closed":
		closed := status == "closed"
		filter.Closed = &closed
	default:
		return filter, errors.Wrapf(core.ErrInvalidInput, "status %q is not open or closed", status)
	}
	return filter, nil
}
