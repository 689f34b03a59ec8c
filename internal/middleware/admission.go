package middleware

import (
	"verimeter/internal/common"
	"verimeter/internal/models"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

const pricingContextKey = "service_pricing"

// RequireAdmission runs the gatekeeper for the service named by the route
// parameter. Admitted requests carry the priced token for the handler to
// charge after doing the work.
func RequireAdmission(gate services.Gatekeeper, serviceParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID, _ := common.GetTenantIDFromContext(ctx)

			pricing, err := gate.Authorize(ctx, tenantID, c.Param(serviceParam))
			if err != nil {
				return WriteServiceError(c, err)
			}
			c.Set(pricingContextKey, pricing)
			return next(c)
		}
	}
}

// PricingFromContext returns the token stored by RequireAdmission
func PricingFromContext(c echo.Context) (*models.ServicePricing, bool) {
	pricing, ok := c.Get(pricingContextKey).(*models.ServicePricing)
	return pricing, ok
}
