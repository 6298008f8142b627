package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/models"
	"tabpool-backend/services"
)

// AccountHandler serves ledger balances and the dev faucet.
type AccountHandler struct {
	*BaseHandler
	pool     *services.PoolService
	decimals int
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(pool *services.PoolService, decimals int, logger *zap.SugaredLogger) *AccountHandler {
	return &AccountHandler{BaseHandler: NewBaseHandler(logger), pool: pool, decimals: decimals}
}

// HandleBalance returns the balance of a wallet or job pool
// @Summary Account balance
// @Tags Accounts
// @Produce json
// @Param id path string true "Wallet or job ID"
// @Success 200 {object} models.BalanceResponse
// @Router /api/accounts/{id}/balance [get]
func (h *AccountHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := core.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	balance, err := h.pool.Balance(r.Context(), account)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, h.balanceResponse(account, balance))
}

// HandleDeposit mints funds into an account when the faucet is enabled
// @Summary Faucet deposit
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID"
// @Param request body models.DepositRequest true "Amount"
// @Success 200 {object} models.BalanceResponse
// @Failure 403 {object} models.APIResponse
// @Router /api/accounts/{id}/deposit [post]
func (h *AccountHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	account, err := core.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	var req models.DepositRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	amount, err := resolveAmount(req.AmountDue, req.Amount, h.decimals)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	balance, err := h.pool.Deposit(r.Context(), account, amount)
	if err != nil {
		h.sendDomainError(w, r, err)
		return
	}
	h.sendSuccess(w, h.balanceResponse(account, balance))
}

func (h *AccountHandler) balanceResponse(account core.Identity, balance int64) models.BalanceResponse {
	return models.BalanceResponse{
		Account: account,
		Balance: balance,
		Display: core.FormatAmount(balance, h.decimals),
	}
}
