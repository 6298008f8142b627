package commands

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tabpool-backend/container"
	core "tabpool-backend/core/payment_job"
)

// NewBalanceCmd builds the balance command.
func NewBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [ACCOUNT]",
		Short: "Show the ledger balance of a wallet or job pool",
		Long: `Show a ledger balance. Without an argument the balance of --wallet is shown.
Passing a job ID shows the job's pooled funds.

Examples:
  tabpool balance
  tabpool balance 7Xf3...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBalance,
	}
}

func accountArg(args []string) (core.Identity, error) {
	if len(args) == 0 {
		return callerWallet()
	}
	id, err := core.ParseIdentity(args[0])
	if err != nil {
		return "", errors.Wrap(err, "account")
	}
	return id, nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	account, err := accountArg(args)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		balance, err := c.PoolService.Balance(ctx, account)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d)\n", account, core.FormatAmount(balance, c.Config.QR.Decimals), balance)
		return nil
	})
}

// NewDepositCmd builds the deposit command.
func NewDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit [ACCOUNT]",
		Short: "Mint test funds into an account (faucet)",
		Long: `Credit an account from the development faucet. Only works while
faucet.enabled is set. Without an argument --wallet is credited.

Examples:
  tabpool deposit --amount 10
  tabpool deposit <address> --amount-due 1000000000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDeposit,
	}
	cmd.Flags().String("amount", "", "Amount in whole units")
	cmd.Flags().Int64("amount-due", 0, "Amount in smallest units")
	return cmd
}

func runDeposit(cmd *cobra.Command, args []string) error {
	account, err := accountArg(args)
	if err != nil {
		return err
	}
	amount, err := amountFlags(cmd)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
		balance, err := c.PoolService.Deposit(ctx, account, amount)
		if err != nil {
			return err
		}
		decimals := c.Config.QR.Decimals
		success(cmd.OutOrStdout(), "Deposited %s into %s; balance %s",
			core.FormatAmount(amount, decimals), account, core.FormatAmount(balance, decimals))
		return nil
	})
}
