package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/middleware"
	"tabpool-backend/models"
	"tabpool-backend/services"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger *zap.SugaredLogger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(logger *zap.SugaredLogger) *BaseHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BaseHandler{logger: logger}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Warnw("encode response failed", "error", err)
		}
	}
}

// sendError sends an error response
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, models.NewErrorResponse(message, statusCode))
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, models.NewSuccessResponse(data))
}

// sendDomainError maps a pool error onto its HTTP status and error code.
// Internal errors are logged and reported without detail.
func (h *BaseHandler) sendDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.HTTPStatus(err)
	code := core.Code(err)
	message := err.Error()

	if errors.Is(err, services.ErrFaucetDisabled) {
		status, code = http.StatusForbidden, "FAUCET_DISABLED"
	}
	if status >= http.StatusInternalServerError && code == "INTERNAL" {
		h.logger.Errorw("request failed",
			"request_id", middleware.RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err)
		message = "internal error"
	}
	h.sendJSON(w, status, models.NewErrorResponseWithCode(message, status, code))
}

// parseJSON parses JSON from request
func (h *BaseHandler) parseJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// caller returns the authenticated wallet or writes a 401.
func (h *BaseHandler) caller(w http.ResponseWriter, r *http.Request) (core.Identity, bool) {
	id, ok := middleware.CallerFrom(r.Context())
	if !ok {
		h.sendJSON(w, http.StatusUnauthorized, models.NewErrorResponseWithHint(
			"caller identity required", http.StatusUnauthorized,
			"send X-API-Key, or X-Wallet when auth is not required"))
		return "", false
	}
	return id, true
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(logger),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
// @Summary Service health
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.healthService.GetHealthStatus(r.Context())
	if health.Status != "healthy" {
		h.sendJSON(w, http.StatusServiceUnavailable, &models.APIResponse{Success: false, Data: health})
		return
	}
	h.sendSuccess(w, health)
}
