package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"verimeter/internal/common"
	"verimeter/internal/middleware"
	"verimeter/internal/models"
	"verimeter/internal/repositories"
	"verimeter/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers handles audit logs related HTTP requests
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

// NewAuditLogsHandlers creates a new audit logs handlers instance
func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

// parseTime accepts RFC3339 timestamps or plain dates
func parseTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ListAuditLogs godoc
// @Summary  Query audit entries, newest first
// @Tags     audit
// @Produce  json
// @Param    tenant_id     path  string true  "tenant id"
// @Param    event_type    query string false "comma separated event types"
// @Param    event_result  query string false "comma separated ALLOWED,BLOCKED,FAILED"
// @Param    actor_id      query string false "actor id"
// @Param    target_entity query string false "target entity"
// @Param    start_date    query string false "RFC3339 or YYYY-MM-DD, inclusive"
// @Param    end_date      query string false "RFC3339 or YYYY-MM-DD, inclusive"
// @Param    limit         query int    false "default 50, max 1000"
// @Param    offset        query int    false "offset"
// @Router   /v1/tenants/{tenant_id}/audit-logs [get]
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	filters := &models.AuditLogFilters{
		TenantID:   tenantID,
		EventTypes: splitList(c.QueryParam("event_type")),
	}
	for _, r := range splitList(c.QueryParam("event_result")) {
		filters.EventResults = append(filters.EventResults, models.EventResult(strings.ToUpper(r)))
	}
	if actorID := c.QueryParam("actor_id"); actorID != "" {
		filters.ActorID = &actorID
	}
	if target := c.QueryParam("target_entity"); target != "" {
		filters.TargetEntity = &target
	}

	var err error
	if filters.StartDate, err = parseTime(c.QueryParam("start_date"), false); err != nil {
		return common.SendValidationError(c, "start_date", "Invalid date format")
	}
	if filters.EndDate, err = parseTime(c.QueryParam("end_date"), true); err != nil {
		return common.SendValidationError(c, "end_date", "Invalid date format")
	}
	if filters.StartDate != nil && filters.EndDate != nil {
		if err := common.ValidateDateRange(*filters.StartDate, *filters.EndDate); err != nil {
			return common.SendValidationError(c, "end_date", err.Error())
		}
	}

	filters.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filters.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	logs, total, err := h.auditLogsService.Query(ctx, filters)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   logs,
		"total":  total,
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetAuditLog retrieves a specific audit log entry
func (h *AuditLogsHandlers) GetAuditLog(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	auditLogID, err := uuid.Parse(c.Param("log_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid audit log ID")
	}

	log, err := h.auditLogsService.GetAuditLog(ctx, tenantID, auditLogID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return common.SendNotFoundError(c, "Audit log")
		}
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, log)
}

// GetAuditSummary provides counts by event, result and reason code
func (h *AuditLogsHandlers) GetAuditSummary(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, _ := common.GetTenantIDFromContext(ctx)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if s, err := parseTime(c.QueryParam("start_date"), false); err != nil {
		return common.SendValidationError(c, "start_date", "Invalid date format")
	} else if s != nil {
		start = *s
	}
	if e, err := parseTime(c.QueryParam("end_date"), true); err != nil {
		return common.SendValidationError(c, "end_date", "Invalid date format")
	} else if e != nil {
		end = *e
	}
	if err := common.ValidateDateRange(start, end); err != nil {
		return common.SendValidationError(c, "end_date", err.Error())
	}

	summary, err := h.auditLogsService.GetSummary(ctx, tenantID, start, end)
	if err != nil {
		return middleware.WriteServiceError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
