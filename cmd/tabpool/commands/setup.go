package commands

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"tabpool-backend/config"
	"tabpool-backend/container"
	core "tabpool-backend/core/payment_job"
	"tabpool-backend/logger"
)

// Version is stamped at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

// cfg is loaded once per invocation by Setup.
var cfg *config.Config

// flagBindings maps config keys onto root persistent flags.
var flagBindings = map[string]string{
	"wallet":            "wallet",
	"store.driver":      "store",
	"store.sqlite_path": "db",
	"log.level":         "log-level",
	"log.json":          "log-json",
}

// Setup loads configuration for the invoked command and initialises the
// global logger. Flags set on the command line win over the config file and
// the environment.
func Setup(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	for key, name := range flagBindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "bind --%s", name)
			}
		}
	}
	loaded, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if err := logger.Initialize(loaded.Log.JSON, loaded.Log.Level); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	cfg = loaded
	return nil
}

func openContainer(ctx context.Context) (*container.Container, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return container.NewContainer(ctx, cfg, logger.Named("tabpool"), Version)
}

// withContainer runs a one-shot command against a freshly opened container.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	if cfg != nil && (cfg.Store.Driver == "" || cfg.Store.Driver == "memory") {
		logger.Logger.Warnw("memory store does not persist between commands; pass --store sqlite to keep jobs")
	}
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func callerWallet() (core.Identity, error) {
	return cfg.WalletIdentity()
}

func jobArg(args []string) (core.Identity, error) {
	id, err := core.ParseIdentity(args[0])
	if err != nil {
		return "", errors.Wrap(err, "job id")
	}
	return id, nil
}
