package container

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tabpool-backend/config"
	core "tabpool-backend/core/payment_job"
	"tabpool-backend/handlers"
	"tabpool-backend/mcp"
	"tabpool-backend/metrics"
	"tabpool-backend/middleware"
	"tabpool-backend/services"
	auth "tabpool-backend/storage/auth"
	jobstore "tabpool-backend/storage/payment_job"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics

	// Storage
	Store   jobstore.Store
	Cache   *jobstore.JobCache
	APIKeys auth.APIKeyValidator

	// Services
	PoolService   *services.PoolService
	QRCodeService *services.QRCodeService
	HealthService *services.HealthService
	Events        *services.EventLog

	// Handlers
	HealthHandler  *handlers.HealthHandler
	JobHandler     *handlers.JobHandler
	AccountHandler *handlers.AccountHandler
	EventHandler   *handlers.EventHandler

	version string
	closers []func()
}

// NewContainer creates a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, version string) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics.New(), version: version}

	store, err := jobstore.Open(ctx, jobstore.Options{
		Driver:     cfg.Store.Driver,
		PGDSN:      cfg.Store.PGDSN,
		SQLitePath: cfg.Store.SQLitePath,
		Seed:       cfg.Store.Seed,
	}, logger.Named("store"))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Store.Driver)
	}
	c.Store = store
	c.closers = append(c.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warnw("close store", "error", err)
		}
	})

	keys, err := c.openAPIKeys(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.APIKeys = keys

	c.Cache = jobstore.NewJobCache(cfg.Cache.TTL, cfg.Cache.MaxSize)
	c.closers = append(c.closers, c.Cache.Stop)

	engine := core.NewEngine(
		core.WithAutoDistribute(cfg.Engine.AutoDistribute),
		core.WithLogger(logger.Named("engine")),
	)
	c.Events = services.NewEventLog(0)
	c.PoolService = services.NewPoolService(services.PoolServiceConfig{
		Store:         store,
		Engine:        engine,
		Cache:         c.Cache,
		Events:        c.Events,
		Metrics:       c.Metrics,
		Logger:        logger.Named("pool"),
		FaucetEnabled: cfg.Faucet.Enabled,
	})
	c.QRCodeService = services.NewQRCodeService(cfg.QR.Scheme, cfg.QR.Label, cfg.QR.Decimals, cfg.QR.Size)
	c.HealthService = services.NewHealthService(store, cfg.Store.Driver, version)

	httpLogger := logger.Named("http")
	c.HealthHandler = handlers.NewHealthHandler(c.HealthService, httpLogger)
	c.JobHandler = handlers.NewJobHandler(c.PoolService, c.QRCodeService, cfg.QR.Decimals, httpLogger)
	c.AccountHandler = handlers.NewAccountHandler(c.PoolService, cfg.QR.Decimals, httpLogger)
	c.EventHandler = handlers.NewEventHandler(c.PoolService, cfg.Server.CORSOrigins, httpLogger)
	return c, nil
}

// openAPIKeys loads configured key bindings into memory, or into Postgres
// when auth.pg_dsn is set.
func (c *Container) openAPIKeys(ctx context.Context) (auth.APIKeyValidator, error) {
	bindings := c.Config.Auth.Bindings()
	if c.Config.Auth.PGDSN != "" {
		pg, err := auth.NewPGAPIKeyStore(ctx, c.Config.Auth.PGDSN, c.Logger.Named("apikeys"))
		if err != nil {
			return nil, errors.Wrap(err, "open api key store")
		}
		c.closers = append(c.closers, pg.Close)
		for _, b := range bindings {
			if err := pg.Seed(ctx, b.Key, core.Identity(b.Wallet), b.Label, "config"); err != nil {
				return nil, err
			}
		}
		return pg, nil
	}

	mem := auth.NewAPIKeyStore()
	for _, b := range bindings {
		if err := mem.Seed(b.Key, core.Identity(b.Wallet), b.Label, "config"); err != nil {
			return nil, err
		}
	}
	if mem.Len() == 0 && c.Config.Auth.Required {
		c.Logger.Warnw("auth.required is set but no API keys are configured; every request will be rejected")
	}
	return mem, nil
}

// Router builds the HTTP handler for the REST API.
func (c *Container) Router() http.Handler {
	return handlers.NewRouter(handlers.RouterConfig{
		Health:       c.HealthHandler,
		Jobs:         c.JobHandler,
		Accounts:     c.AccountHandler,
		Events:       c.EventHandler,
		MCP:          c.MCPServer(c.version).HTTPHandler(),
		Keys:         c.APIKeys,
		AuthRequired: c.Config.Auth.Required,
		Limiter:      middleware.NewKeyLimiter(c.Config.Server.RateLimitRPS, c.Config.Server.RateLimitBurst, 0),
		Timeout:      c.Config.Server.RequestTimeout,
		CORSOrigins:  c.Config.Server.CORSOrigins,
		Metrics:      c.Metrics,
		Logger:       c.Logger.Named("http"),
	})
}

// MCPServer builds the MCP tool server acting as the configured wallet.
func (c *Container) MCPServer(version string) *mcp.MCPServer {
	var wallet core.Identity
	if id, err := c.Config.WalletIdentity(); err == nil {
		wallet = id
	}
	return mcp.NewMCPServer(mcp.Options{
		Pool:     c.PoolService,
		QR:       c.QRCodeService,
		Wallet:   wallet,
		Decimals: c.Config.QR.Decimals,
		Version:  version,
		Logger:   c.Logger.Named("mcp"),
	})
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
