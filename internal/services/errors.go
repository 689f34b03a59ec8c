package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrPriceNotConfigured  = errors.New("price not configured")
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrWalletNotFound   = errors.New("wallet not found")
	ErrChargeNotFound   = errors.New("charge not found")
	ErrEntityNotFound   = errors.New("entity not found")
	ErrEntityExists     = errors.New("entity already exists")
	ErrInvalidEntity    = errors.New("invalid entity")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidPrice     = errors.New("price must not be negative")
	ErrInvalidHierarchy = errors.New("invalid entity hierarchy")
	ErrAuditWrite       = errors.New("audit write failed")
	ErrInvalidFilters   = errors.New("invalid audit filters")
)

// InsufficientBalanceError carries the amounts behind a refused charge. It
// matches ErrInsufficientBalance with errors.Is.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s %s, available %s %s",
		e.Required.String(), e.Currency, e.Available.String(), e.Currency)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// withAuditErr attaches a strict-mode audit failure to a business error
func withAuditErr(err, auditErr error) error {
	if auditErr == nil {
		return err
	}
	return errors.Join(err, auditErr)
}
