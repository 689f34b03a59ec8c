package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"verimeter/internal/common"
	"verimeter/internal/middleware"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

type WalletHandlers struct {
	walletService services.WalletService
}

func NewWalletHandlers(walletService services.WalletService) *WalletHandlers {
	return &WalletHandlers{walletService: walletService}
}

func actorOf(ctx context.Context) string {
	actorID, _ := common.GetActorIDFromContext(ctx)
	return actorID
}

// BalanceResponse reports a tenant's spendable balance
type BalanceResponse struct {
	TenantID string `json:"tenant_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency,omitempty"`
}

// GetBalance godoc
// @Summary  Current wallet balance; zero when no wallet exists
// @Tags     wallet
// @Produce  json
// @Param    tenant_id path string true "tenant id"
// @Success  200 {object} BalanceResponse
// @Router   /v1/tenants/{tenant_id}/wallet [get]
func (h *WalletHandlers) GetBalance(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	resp := BalanceResponse{TenantID: tenantID, Balance: "0"}
	wallet, err := h.walletService.GetWallet(ctx, tenantID)
	switch {
	case err == nil:
		resp.Balance = wallet.Balance.String()
		resp.Currency = wallet.Currency
	case !errors.Is(err, services.ErrWalletNotFound):
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListTransactions returns the tenant's ledger, newest first
func (h *WalletHandlers) ListTransactions(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	txs, err := h.walletService.ListTransactions(ctx, tenantID, limit, offset)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// TopupRequest credits a wallet after an external payment
type TopupRequest struct {
	Amount    string `json:"amount" validate:"required,decimal"`
	PaymentID string `json:"payment_id" validate:"required,max=128"`
}

// Topup godoc
// @Summary  Credit a wallet, creating it on first use. Idempotent per payment_id.
// @Tags     wallet
// @Accept   json
// @Param    tenant_id path string       true "tenant id"
// @Param    body      body TopupRequest true "topup"
// @Success  200 {object} BalanceResponse
// @Router   /v1/tenants/{tenant_id}/wallet/topup [post]
func (h *WalletHandlers) Topup(c echo.Context) error {
	var req TopupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)
	if err := h.walletService.Topup(ctx, tenantID, amount, req.PaymentID, actorOf(ctx)); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return h.GetBalance(c)
}

// RefundRequest returns funds for a charge that should not have happened
type RefundRequest struct {
	Amount      string `json:"amount" validate:"required,decimal"`
	Reason      string `json:"reason" validate:"required,max=512"`
	ReferenceID string `json:"reference_id" validate:"max=128"`
}

func (h *WalletHandlers) Refund(c echo.Context) error {
	var req RefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)
	if err := h.walletService.Refund(ctx, tenantID, amount, req.Reason, req.ReferenceID); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return h.GetBalance(c)
}

// Reconcile compares the cached balance with the ledger sum
func (h *WalletHandlers) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	result, err := h.walletService.Reconcile(ctx, tenantID)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
