package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tabpool-backend/cmd/tabpool/commands"
	"tabpool-backend/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabpool",
		Short: "tabpool - split a shared tab through a payment pool",
		Long: `tabpool collects a fixed amount from each contributor into a job pool and
splits the pool evenly across recipients.

Available commands:
  create      - Create a payment job
  pay         - Pay your share into a job
  status      - Show who has paid
  distribute  - Split the pool across recipients
  qr          - Show the payment request QR code
  list        - List jobs
  balance     - Show a ledger balance
  deposit     - Mint test funds (faucet)
  serve       - Run the REST API
  mcp         - Run the MCP tool server on stdio

Examples:
  tabpool create --contributors A,B --recipients C --amount 0.5 --wallet C
  tabpool pay <job> --wallet A
  tabpool status <job> -o yaml
  tabpool serve --store postgres`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return commands.Setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default ./tabpool.yaml or $HOME/.tabpool/tabpool.yaml)")
	flags.String("wallet", "", "Wallet address acting as caller")
	flags.String("store", "", "Store driver: memory, sqlite or postgres")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Emit logs as JSON")

	root.AddCommand(
		commands.NewCreateCmd(),
		commands.NewPayCmd(),
		commands.NewStatusCmd(),
		commands.NewDistributeCmd(),
		commands.NewQRCmd(),
		commands.NewListCmd(),
		commands.NewBalanceCmd(),
		commands.NewDepositCmd(),
		commands.NewServeCmd(),
		commands.NewMCPCmd(),
		commands.NewVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
