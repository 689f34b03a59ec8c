package handlers

import (
	"net/http"

	"verimeter/internal/common"
	"verimeter/internal/middleware"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PricingHandlers struct {
	pricingService services.PricingService
}

func NewPricingHandlers(pricingService services.PricingService) *PricingHandlers {
	return &PricingHandlers{pricingService: pricingService}
}

// SetPriceRequest carries the price as a decimal string
type SetPriceRequest struct {
	Price       string `json:"price" validate:"required,decimal"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string `json:"description" validate:"max=256"`
}

func (r SetPriceRequest) amount() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return decimal.Zero, echo.NewHTTPError(http.StatusBadRequest, "price must be a decimal")
	}
	return price, nil
}

// ListPrices godoc
// @Summary  Effective price of every service for a tenant
// @Tags     pricing
// @Produce  json
// @Param    tenant_id path string true "tenant id"
// @Success  200 {array} models.ServicePricing
// @Router   /v1/tenants/{tenant_id}/prices [get]
func (h *PricingHandlers) ListPrices(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	prices, err := h.pricingService.GetAllPrices(ctx, tenantID)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"prices": prices})
}

// ResolvePrice returns the price a tenant would be charged for one service
func (h *PricingHandlers) ResolvePrice(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	pricing, err := h.pricingService.ResolvePrice(ctx, tenantID, c.Param("service_code"))
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, pricing)
}

// SetTenantPrice godoc
// @Summary  Set a tenant price override
// @Tags     pricing
// @Accept   json
// @Param    tenant_id    path string          true "tenant id"
// @Param    service_code path string          true "service code"
// @Param    body         body SetPriceRequest true "price"
// @Success  204
// @Router   /v1/tenants/{tenant_id}/prices/{service_code} [put]
func (h *PricingHandlers) SetTenantPrice(c echo.Context) error {
	var req SetPriceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	price, err := req.amount()
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)
	if err := h.pricingService.SetTenantPrice(ctx, tenantID, c.Param("service_code"), price, req.Currency, actorOf(ctx)); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveTenantPrice deletes an override so the platform default applies again
func (h *PricingHandlers) RemoveTenantPrice(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	if err := h.pricingService.RemoveTenantPrice(ctx, tenantID, c.Param("service_code"), actorOf(ctx)); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetDefaultPrice sets the platform-wide price of a service (admin only)
func (h *PricingHandlers) SetDefaultPrice(c echo.Context) error {
	var req SetPriceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	price, err := req.amount()
	if err != nil {
		return err
	}

	if err := h.pricingService.SetDefaultPrice(c.Request().Context(), c.Param("service_code"), price, req.Currency, req.Description); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
