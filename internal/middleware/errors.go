package middleware

import (
	"errors"
	"net/http"

	"verimeter/internal/common"
	"verimeter/internal/models"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

// InsufficientBalanceResponse is the 402 body
type InsufficientBalanceResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Required  string `json:"required"`
	Available string `json:"available"`
	Currency  string `json:"currency"`
}

// WriteServiceError maps service errors onto HTTP responses
func WriteServiceError(c echo.Context, err error) error {
	var insufficient *services.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusPaymentRequired, InsufficientBalanceResponse{
			Error:     "Insufficient balance",
			Code:      models.ReasonInsufficientBalance,
			Required:  insufficient.Required.String(),
			Available: insufficient.Available.String(),
			Currency:  insufficient.Currency,
		})
	case errors.Is(err, services.ErrUnauthorized):
		return common.SendUnauthorizedError(c)
	case errors.Is(err, services.ErrAccountDisabled):
		return common.SendForbiddenError(c, models.ReasonAccountDisabled, "Account is disabled")
	case errors.Is(err, services.ErrPriceNotConfigured):
		return common.SendForbiddenError(c, models.ReasonPriceNotConfigured, "Service is not priced for this tenant")
	case errors.Is(err, services.ErrWalletNotFound):
		return common.SendNotFoundError(c, "Wallet")
	case errors.Is(err, services.ErrChargeNotFound):
		return common.SendNotFoundError(c, "Charge")
	case errors.Is(err, services.ErrEntityNotFound):
		return common.SendNotFoundError(c, "Entity")
	case errors.Is(err, services.ErrEntityExists):
		return c.JSON(http.StatusConflict, common.CreateErrorResponse("CONFLICT", err.Error(), nil))
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidPrice),
		errors.Is(err, services.ErrInvalidEntity),
		errors.Is(err, services.ErrInvalidFilters):
		return common.SendClientError(c, err.Error())
	case errors.Is(err, services.ErrInvalidHierarchy):
		return c.JSON(http.StatusConflict, common.CreateErrorResponse("INVALID_HIERARCHY", err.Error(), nil))
	default:
		c.Logger().Errorf("request failed: %v", err)
		return common.SendServerError(c, "Internal server error")
	}
}
