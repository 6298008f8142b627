package commands

import (
	"github.com/spf13/cobra"

	"tabpool-backend/logger"
)

// NewMCPCmd builds the mcp command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server on stdio",
		Long: `Expose the job operations as MCP tools over stdin/stdout. Tools that act
on behalf of a caller (create, pay, distribute) use the --wallet identity.

Examples:
  tabpool mcp --wallet <address> --store sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if cfg.Wallet == "" {
				logger.Logger.Warnw("no wallet configured; create_job, pay_job and distribute_job will be refused")
			}
			logger.Logger.Infow("tabpool MCP server starting", "store", cfg.Store.Driver, "version", Version)
			return c.MCPServer(Version).ServeStdio()
		},
	}
}
