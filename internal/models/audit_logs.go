package models

import (
	"time"

	"github.com/google/uuid"
)

// EventResult is the outcome recorded for an audited decision
type EventResult string

const (
	EventResultAllowed EventResult = "ALLOWED"
	EventResultBlocked EventResult = "BLOCKED"
	EventResultFailed  EventResult = "FAILED"
)

// ActorType distinguishes human callers from the platform itself
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeSystem ActorType = "SYSTEM"
)

// Event types written by the core
const (
	EventServiceAccess   = "SERVICE_ACCESS"
	EventDeduction       = "DEDUCTION"
	EventTopup           = "TOPUP"
	EventRefund          = "REFUND"
	EventAccountDisabled = "ACCOUNT_DISABLED"
	EventAccountEnabled  = "ACCOUNT_ENABLED"
	EventPriceUpdated    = "PRICE_UPDATED"
	EventPriceRemoved    = "PRICE_REMOVED"
)

// Reason codes attached to BLOCKED and FAILED entries
const (
	ReasonAccountDisabled     = "ACCOUNT_DISABLED"
	ReasonPriceNotConfigured  = "PRICE_NOT_CONFIGURED"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonWalletNotFound      = "WALLET_NOT_FOUND"
)

// Target entity names
const (
	TargetService = "service"
	TargetWallet  = "wallet"
	TargetEntity  = "entity"
	TargetPrice   = "service_price"
)

// AuditLog is an immutable record of one admission decision or ledger mutation
type AuditLog struct {
	ID           uuid.UUID   `json:"log_id" db:"id"`
	TenantID     string      `json:"tenant_id" db:"tenant_id"`
	EventType    string      `json:"event_type" db:"event_type"`
	EventResult  EventResult `json:"event_result" db:"event_result"`
	ActorID      string      `json:"actor_id" db:"actor_id"`
	ActorRole    string      `json:"actor_role" db:"actor_role"`
	ActorType    ActorType   `json:"actor_type" db:"actor_type"`
	TargetEntity string      `json:"target_entity" db:"target_entity"`
	TargetID     string      `json:"target_id" db:"target_id"`
	ReasonCode   *string     `json:"reason_code,omitempty" db:"reason_code"`
	Message      string      `json:"message" db:"message"`
	Metadata     JSONB       `json:"metadata,omitempty" db:"metadata"`
	IPAddress    string      `json:"ip_address" db:"ip_address"`
	UserAgent    string      `json:"user_agent" db:"user_agent"`
	RequestID    string      `json:"request_id" db:"request_id"`
	CreatedAt    time.Time   `json:"timestamp" db:"created_at"`
}

// AuditLogFilters represents filters for querying audit logs. All set
// filters combine with AND.
type AuditLogFilters struct {
	TenantID     string        `json:"tenant_id"`
	EventTypes   []string      `json:"event_types"`
	EventResults []EventResult `json:"event_results"`
	ActorID      *string       `json:"actor_id"`
	TargetEntity *string       `json:"target_entity"`
	StartDate    *time.Time    `json:"start_date"`
	EndDate      *time.Time    `json:"end_date"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// AuditLogSummary represents summary statistics for audit logs
type AuditLogSummary struct {
	TenantID        string         `json:"tenant_id"`
	TotalLogs       int            `json:"total_logs"`
	EventBreakdown  map[string]int `json:"event_breakdown"`
	ResultBreakdown map[string]int `json:"result_breakdown"`
	ReasonBreakdown map[string]int `json:"reason_breakdown"`
	PeriodStart     time.Time      `json:"period_start"`
	PeriodEnd       time.Time      `json:"period_end"`
}
