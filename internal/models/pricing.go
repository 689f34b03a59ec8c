package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tells callers which table a resolved price came from
type PriceSource string

const (
	PriceSourceTenantOverride  PriceSource = "TENANT_OVERRIDE"
	PriceSourcePlatformDefault PriceSource = "PLATFORM_DEFAULT"
)

// ServicePrice is a tenant-specific override keyed by (tenant_id, service_code)
type ServicePrice struct {
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	ServiceCode string          `json:"service_code" db:"service_code"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Currency    string          `json:"currency" db:"currency"`
	UpdatedBy   *string         `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// DefaultPrice is a platform-wide price keyed by service_code alone
type DefaultPrice struct {
	ServiceCode string          `json:"service_code" db:"service_code"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Currency    string          `json:"currency" db:"currency"`
	Description string          `json:"description" db:"description"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ServicePricing is the priced token handed out by the gatekeeper. The
// downstream handler charges exactly this price.
type ServicePricing struct {
	ServiceCode string          `json:"service_code"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Source      PriceSource     `json:"source"`
}
