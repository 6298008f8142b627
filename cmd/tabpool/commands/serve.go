package commands

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tabpool-backend/logger"
)

// shutdownGrace bounds how long in-flight requests may finish on exit.
const shutdownGrace = 10 * time.Second

// NewServeCmd builds the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Serve the job API over HTTP, together with /api/health, /metrics and
/swagger/doc.json. Stops gracefully on SIGINT or SIGTERM.

Examples:
  tabpool serve --port 3100
  TABPOOL_STORE_DRIVER=postgres TABPOOL_STORE_PG_DSN=... tabpool serve`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("port", "", "Listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	log := logger.Named("serve")
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           c.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("tabpool API listening",
			"addr", srv.Addr,
			"store", cfg.Store.Driver,
			"auth_required", cfg.Auth.Required,
			"auto_distribute", cfg.Engine.AutoDistribute,
			"version", Version)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return <-errCh
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	}
}
