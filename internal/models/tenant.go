package models

import (
	"time"
)

// EntityType distinguishes top-level tenants from the sub-tenants they own
type EntityType string

const (
	EntityTypeTenant    EntityType = "TENANT"
	EntityTypeSubTenant EntityType = "SUB_TENANT"
)

// EntityStatus is the stored status of a single entity, not its effective status
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "ACTIVE"
	EntityStatusDisabled EntityStatus = "DISABLED"
)

// Entity is a billable tenant or sub-tenant in the ownership tree
type Entity struct {
	ID             string       `json:"entity_id" db:"entity_id"`
	Type           EntityType   `json:"entity_type" db:"entity_type"`
	Status         EntityStatus `json:"status" db:"status"`
	ParentID       *string      `json:"parent_id,omitempty" db:"parent_id"`
	DisabledReason *string      `json:"disabled_reason,omitempty" db:"disabled_reason"`
	DisabledAt     *time.Time   `json:"disabled_at,omitempty" db:"disabled_at"`
	DisabledBy     *string      `json:"disabled_by,omitempty" db:"disabled_by"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// IsDisabled reports the entity's own stored status
func (e *Entity) IsDisabled() bool {
	return e.Status == EntityStatusDisabled
}

func ValidEntityType(t EntityType) bool {
	return t == EntityTypeTenant || t == EntityTypeSubTenant
}
