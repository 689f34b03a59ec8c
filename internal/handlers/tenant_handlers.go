package handlers

import (
	"net/http"
	"strconv"

	"verimeter/internal/middleware"
	"verimeter/internal/models"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers exposes entity provisioning and account status
type TenantHandlers struct {
	statusService services.AccountStatusService
}

func NewTenantHandlers(statusService services.AccountStatusService) *TenantHandlers {
	return &TenantHandlers{statusService: statusService}
}

// ProvisionEntityRequest represents the entity creation payload
type ProvisionEntityRequest struct {
	EntityID   string  `json:"entity_id" validate:"required,max=128"`
	EntityType string  `json:"entity_type" validate:"required,oneof=TENANT SUB_TENANT"`
	ParentID   *string `json:"parent_id" validate:"omitempty,max=128"`
	Status     string  `json:"status" validate:"omitempty,oneof=ACTIVE DISABLED"`
}

// ProvisionEntity godoc
// @Summary  Provision a tenant or sub-tenant
// @Tags     entities
// @Accept   json
// @Produce  json
// @Param    body body ProvisionEntityRequest true "entity"
// @Success  201 {object} models.Entity
// @Router   /v1/entities [post]
func (h *TenantHandlers) ProvisionEntity(c echo.Context) error {
	var req ProvisionEntityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	entity := &models.Entity{
		ID:       req.EntityID,
		Type:     models.EntityType(req.EntityType),
		Status:   models.EntityStatus(req.Status),
		ParentID: req.ParentID,
	}
	if err := h.statusService.Provision(c.Request().Context(), entity); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, entity)
}

// ListEntities handles listing entities, optionally by type (admin only)
func (h *TenantHandlers) ListEntities(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entityType *models.EntityType
	if t := c.QueryParam("entity_type"); t != "" {
		et := models.EntityType(t)
		if !models.ValidEntityType(et) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid entity_type")
		}
		entityType = &et
	}

	entities, err := h.statusService.List(c.Request().Context(), entityType, limit, offset)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entities": entities,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetEntity returns the stored entity, not its effective status
func (h *TenantHandlers) GetEntity(c echo.Context) error {
	entity, err := h.statusService.Get(c.Request().Context(), c.Param("entity_id"))
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, entity)
}

// EntityStatusResponse reports the effective status after the cascade
type EntityStatusResponse struct {
	EntityID   string            `json:"entity_id"`
	EntityType models.EntityType `json:"entity_type"`
	Active     bool              `json:"active"`
}

// GetEntityStatus godoc
// @Summary  Effective status of an entity, including ancestors
// @Tags     entities
// @Produce  json
// @Param    entity_id   path  string true  "entity id"
// @Param    entity_type query string false "TENANT or SUB_TENANT"
// @Success  200 {object} EntityStatusResponse
// @Router   /v1/entities/{entity_id}/status [get]
func (h *TenantHandlers) GetEntityStatus(c echo.Context) error {
	entityType := models.EntityType(c.QueryParam("entity_type"))
	if entityType == "" {
		entityType = models.EntityTypeTenant
	}
	if !models.ValidEntityType(entityType) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid entity_type")
	}

	entityID := c.Param("entity_id")
	active, err := h.statusService.IsActive(c.Request().Context(), entityID, entityType)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, EntityStatusResponse{EntityID: entityID, EntityType: entityType, Active: active})
}

// ChangeStatusRequest is the disable/enable payload
type ChangeStatusRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=TENANT SUB_TENANT"`
	Reason     string `json:"reason" validate:"max=512"`
}

// DisableEntity godoc
// @Summary  Disable an entity; descendants are blocked through the cascade
// @Tags     entities
// @Accept   json
// @Param    entity_id path string              true "entity id"
// @Param    body      body ChangeStatusRequest true "status change"
// @Success  204
// @Router   /v1/entities/{entity_id}/disable [post]
func (h *TenantHandlers) DisableEntity(c echo.Context) error {
	var req ChangeStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	ctx := c.Request().Context()
	err := h.statusService.Disable(ctx, c.Param("entity_id"), models.EntityType(req.EntityType), actorOf(ctx), req.Reason)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// EnableEntity re-enables an entity's own row
func (h *TenantHandlers) EnableEntity(c echo.Context) error {
	var req ChangeStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.statusService.Enable(ctx, c.Param("entity_id"), models.EntityType(req.EntityType), actorOf(ctx)); err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
