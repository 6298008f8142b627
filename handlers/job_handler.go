package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/models"
	"tabpool-backend/services"
)

// JobHandler serves the payment job routes.
type JobHandler struct {
	*BaseHandler
	pool     *services.PoolService
	qr       *services.QRCodeService
	decimals int
}

// NewJobHandler creates a new job handler
func NewJobHandler(pool *services.PoolService, qr *services.QRCodeService, decimals int, logger *zap.SugaredLogger) *JobHandler {
	return &JobHandler{
		BaseHandler: NewBaseHandler(logger),
		pool:        pool,
		qr:          qr,
		decimals:    decimals,
	}
}

// resolveAmount accepts either a smallest-unit integer or a decimal string.
func resolveAmount(units int64, decimal string, decimals int) (int64, error) {
	decimal = strings.TrimSpace(decimal)
	switch {
	case units != 0 && decimal != "":
		return 0, errors.Wrap(core.ErrInvalidInput, "set amount_due or amount, not both")
	case decimal != "":
		return core.ParseAmount(decimal, decimals)
	case units <= 0:
		return 0, errors.Wrap(core.ErrInvalidInput, "amount must be positive")
	default:
		return units, nil
	}
}

func jobID(r *http.Request) (core.Identity, error) {
	return core.ParseIdentity(chi.URLParam(r, "id"))
}

// HandleCreateJob creates a job owned by the caller
// @Summary Create a payment job
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body models.CreateJobRequest true "Job definition"
// @Success 201 {object} models.JobResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/jobs [post]
func (h *JobHandler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req models.CreateJobRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	contributors, err := core.ParseIdentityList(req.Contributors)
	if err != nil {
		h.sendDomainError(w, r, errors.Wrap(err, "contributors"))
		return
	}
	recipients, err := core.ParseIdentityList(req.Recipients)
	if err != nil {
		h.sendDomainError(w, r, errors.Wrap(err, "recipients"))
		return
	}
	amount, err := resolveAmount(req.AmountDue, req.Amount, h.decimals)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}

	job, err := h.pool.CreateJob(r.Context(), core.CreateJobParams{
		Contributors: contributors,
		Recipients:   recipients,
		AmountDue:    amount,
		Deadline:     req.Deadline,
		Authority:    authority,
	})
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+job.ID.String())
	h.sendJSON(w, http.StatusCreated, models.NewSuccessResponse(models.NewJobResponse(job)))
}

// HandleListJobs lists jobs, newest first
// @Summary List payment jobs
// @Tags Jobs
// @Produce json
// @Param authority query string false "Filter by authority"
// @Param participant query string false "Filter by contributor or recipient"
// @Param closed query bool false "Filter by closed state"
// @Param limit query int false "Maximum results"
// @Success 200 {object} models.JobsResponse
// @Router /api/jobs [get]
func (h *JobHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.Filter
	var err error

	if v := q.Get("authority"); v != "" {
		if filter.Authority, err = core.ParseIdentity(v); err != nil {
			h.sendDomainError(w, r, errors.Wrap(err, "authority"))
			return
		}
	}
	if v := q.Get("participant"); v != "" {
		if filter.Participant, err = core.ParseIdentity(v); err != nil {
			h.sendDomainError(w, r, errors.Wrap(err, "participant"))
			return
		}
	}
	if v := q.Get("closed"); v != "" {
		closed, err := strconv.ParseBool(v)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "closed must be true or false")
			return
		}
		filter.Closed = &closed
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.sendError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	jobs, err := h.pool.ListJobs(r.Context(), filter)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []core.Job{}
	}
	h.sendJSON(w, http.StatusOK, models.NewSuccessResponseWithMeta(
		models.JobsResponse{Jobs: jobs, Total: len(jobs)},
		map[string]interface{}{"filter": filter}))
}

// HandleGetJob returns a job with its status summary
// @Summary Job status
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.JobResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/jobs/{id} [get]
func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	job, err := h.pool.GetJob(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	summary, err := h.pool.Status(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, models.JobResponse{Job: job, Summary: summary})
}

// HandlePay records the caller's contribution
// @Summary Pay into a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.OutcomeResponse
// @Failure 403 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/jobs/{id}/pay [post]
func (h *JobHandler) HandlePay(w http.ResponseWriter, r *http.Request) {
	payer, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := jobID(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	out, err := h.pool.Pay(r.Context(), id, payer)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, outcomeResponse(out))
}

// HandleDistribute splits the pool across recipients
// @Summary Distribute a job's pool
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.OutcomeResponse
// @Failure 403 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Failure 422 {object} models.APIResponse
// @Router /api/jobs/{id}/distribute [post]
func (h *JobHandler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := jobID(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	out, err := h.pool.Distribute(r.Context(), id, caller)
	if err != nil {
		if core.ShouldCommit(err) {
			// The job closed and some payouts went through; report both.
			status := core.HTTPStatus(err)
			resp := models.NewErrorResponseWithCode(err.Error(), status, core.Code(err))
			resp.Data = outcomeResponse(out)
			h.sendJSON(w, status, resp)
			return
		}
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, outcomeResponse(out))
}

func outcomeResponse(out services.Outcome) models.OutcomeResponse {
	return models.OutcomeResponse{
		Job:          out.Job,
		Summary:      core.Summarize(out.Job),
		Distribution: out.Distribution,
	}
}

// HandleTransfers returns the ledger transfers of a job
// @Summary Job transfer log
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.TransfersResponse
// @Router /api/jobs/{id}/transfers [get]
func (h *JobHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	transfers, err := h.pool.Transfers(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []core.TransferRecord{}
	}
	h.sendSuccess(w, models.TransfersResponse{Transfers: transfers, Total: len(transfers)})
}

// HandlePaymentURI returns the wallet payment request of a job
// @Summary Payment request URI
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.PaymentURIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/jobs/{id}/payment-uri [get]
func (h *JobHandler) HandlePaymentURI(w http.ResponseWriter, r *http.Request) {
	job, ok := h.openJob(w, r)
	if !ok {
		return
	}
	uri, err := h.qr.PaymentURI(job)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, models.PaymentURIResponse{JobID: job.ID, URI: uri})
}

// HandleQRCode renders the payment request of a job as PNG
// @Summary Payment request QR code
// @Tags Jobs
// @Produce png
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Failure 409 {object} models.APIResponse
// @Router /api/jobs/{id}/qrcode [get]
func (h *JobHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	job, ok := h.openJob(w, r)
	if !ok {
		return
	}
	png, err := h.qr.GenerateQRCode(job)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func (h *JobHandler) openJob(w http.ResponseWriter, r *http.Request) (core.Job, bool) {
	id, err := jobID(r)
	if err != nil {
		h.sendDomainError(w, r, err)
		return core.Job{}, false
	}
	job, err := h.pool.GetJob(r.Context(), id)
	if err != nil {
		h.sendDomainError(w, r, err)
		return core.Job{}, false
	}
	return job, true
}
