package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	_ "tabpool-backend/docs"
	"tabpool-backend/metrics"
	"tabpool-backend/middleware"
	auth "tabpool-backend/storage/auth"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Health   *HealthHandler
	Jobs     *JobHandler
	Accounts *AccountHandler
	Events   *EventHandler
	// MCP serves JSON-RPC tool calls at /mcp when set.
	MCP http.Handler

	Keys         auth.APIKeyValidator
	AuthRequired bool
	Limiter      *middleware.KeyLimiter
	Timeout      time.Duration
	CORSOrigins  []string
	Metrics      *metrics.Metrics
	Logger       *zap.SugaredLogger
}

// NewRouter wires middleware and routes.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logging(logger, cfg.Metrics),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Get("/api/health", cfg.Health.HandleHealth)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}
	r.Get("/swagger/doc.json", serveSwagger)

	r.Group(func(api chi.Router) {
		api.Use(
			middleware.RateLimit(cfg.Limiter, cfg.Keys),
			middleware.Timeout(cfg.Timeout),
			middleware.APIAuth(cfg.Keys, cfg.AuthRequired),
		)

		api.Route("/api/jobs", func(jr chi.Router) {
			jr.Get("/", cfg.Jobs.HandleListJobs)
			jr.Post("/", cfg.Jobs.HandleCreateJob)
			jr.Route("/{id}", func(one chi.Router) {
				one.Get("/", cfg.Jobs.HandleGetJob)
				one.Post("/pay", cfg.Jobs.HandlePay)
				one.Post("/distribute", cfg.Jobs.HandleDistribute)
				one.Get("/transfers", cfg.Jobs.HandleTransfers)
				one.Get("/payment-uri", cfg.Jobs.HandlePaymentURI)
				one.Get("/qrcode", cfg.Jobs.HandleQRCode)
			})
		})

		api.Get("/api/accounts/{id}/balance", cfg.Accounts.HandleBalance)
		api.Post("/api/accounts/{id}/deposit", cfg.Accounts.HandleDeposit)
		api.Get("/api/events", cfg.Events.HandleEvents)
		if cfg.MCP != nil {
			api.Method(http.MethodPost, "/mcp", cfg.MCP)
		}
	})

	// Long-lived streams skip the request timeout.
	r.Group(func(stream chi.Router) {
		stream.Use(
			middleware.RateLimit(cfg.Limiter, cfg.Keys),
			middleware.APIAuth(cfg.Keys, cfg.AuthRequired),
		)
		stream.Get("/api/events/ws", cfg.Events.HandleEventStream)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NewBaseHandler(logger).sendError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		NewBaseHandler(logger).sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func serveSwagger(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}
