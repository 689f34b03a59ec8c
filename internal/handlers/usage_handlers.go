package handlers

import (
	"errors"
	"net/http"

	"verimeter/internal/common"
	"verimeter/internal/middleware"
	"verimeter/internal/models"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

// UsageHandlers serve metered routes. Authorize runs behind
// RequireAdmission; RecordUsage admits the request itself so that a retried
// charge is answered before admission runs again.
type UsageHandlers struct {
	walletService services.WalletService
	gate          services.Gatekeeper
}

func NewUsageHandlers(walletService services.WalletService, gate services.Gatekeeper) *UsageHandlers {
	return &UsageHandlers{walletService: walletService, gate: gate}
}

// RecordUsageRequest describes one completed unit of paid work
type RecordUsageRequest struct {
	ReferenceID string       `json:"reference_id" validate:"max=128"`
	Metadata    models.JSONB `json:"metadata"`
}

// UsageResponse reports what was charged
type UsageResponse struct {
	ServiceCode string             `json:"service_code"`
	Charged     string             `json:"charged"`
	Currency    string             `json:"currency"`
	Source      models.PriceSource `json:"source,omitempty"`
	ReferenceID string             `json:"reference_id,omitempty"`
	// Replayed is set when reference_id was already charged
	Replayed bool `json:"replayed,omitempty"`
}

// Authorize godoc
// @Summary  Preflight admission check; never charges
// @Tags     usage
// @Produce  json
// @Param    service_code path string true "service code"
// @Success  200 {object} models.ServicePricing
// @Failure  402 {object} middleware.InsufficientBalanceResponse
// @Failure  403 {object} common.ErrorResponse
// @Router   /v1/services/{service_code}/authorize [post]
func (h *UsageHandlers) Authorize(c echo.Context) error {
	pricing, ok := middleware.PricingFromContext(c)
	if !ok {
		return common.SendServerError(c, "Admission was not evaluated")
	}
	return c.JSON(http.StatusOK, pricing)
}

// RecordUsage godoc
// @Summary  Charge the admitted price for completed work. Idempotent per reference_id.
// @Tags     usage
// @Accept   json
// @Produce  json
// @Param    service_code    path   string             true  "service code"
// @Param    Idempotency-Key header string             false "used when reference_id is empty"
// @Param    body            body   RecordUsageRequest false "usage"
// @Success  200 {object} UsageResponse
// @Failure  402 {object} middleware.InsufficientBalanceResponse
// @Router   /v1/services/{service_code}/usage [post]
func (h *UsageHandlers) RecordUsage(c echo.Context) error {
	var req RecordUsageRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	if req.ReferenceID == "" {
		req.ReferenceID = c.Request().Header.Get("Idempotency-Key")
	}

	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	if req.ReferenceID != "" && tenantID != "" {
		charge, err := h.walletService.FindCharge(ctx, tenantID, req.ReferenceID)
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, h.replay(c, tenantID, charge))
		case !errors.Is(err, services.ErrChargeNotFound):
			return middleware.WriteServiceError(c, err)
		}
	}

	pricing, err := h.gate.Authorize(ctx, tenantID, c.Param("service_code"))
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}

	resp := UsageResponse{
		ServiceCode: pricing.ServiceCode,
		Charged:     pricing.Price.String(),
		Currency:    pricing.Currency,
		Source:      pricing.Source,
		ReferenceID: req.ReferenceID,
	}
	// free services are admitted without touching the ledger
	if pricing.Price.IsZero() {
		return c.JSON(http.StatusOK, resp)
	}

	if err := h.walletService.Deduct(ctx, tenantID, pricing.Price, pricing.ServiceCode, req.ReferenceID, req.Metadata); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// replay describes a charge recorded by an earlier request
func (h *UsageHandlers) replay(c echo.Context, tenantID string, charge *models.WalletTransaction) UsageResponse {
	resp := UsageResponse{
		ServiceCode: common.SafeString(charge.ServiceCode),
		Charged:     charge.Amount.String(),
		ReferenceID: common.SafeString(charge.ReferenceID),
		Replayed:    true,
	}
	if wallet, err := h.walletService.GetWallet(c.Request().Context(), tenantID); err == nil {
		resp.Currency = wallet.Currency
	}
	return resp
}
