package handlers

import (
	"net/http"
	"time"

	"verimeter/internal/common"
	"verimeter/internal/jobs/background"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

// JobHandlers lets operators run scheduled maintenance on demand
type JobHandlers struct {
	reconciler *background.Reconciler
	archive    services.AuditArchiveService
}

// NewJobHandlers creates job handlers. archive may be nil when object
// storage is not configured.
func NewJobHandlers(reconciler *background.Reconciler, archive services.AuditArchiveService) *JobHandlers {
	return &JobHandlers{reconciler: reconciler, archive: archive}
}

// RunReconciliation godoc
// @Summary  Reconcile every wallet now
// @Tags     jobs
// @Produce  json
// @Success  200 {object} background.ReconcileReport
// @Router   /v1/admin/jobs/reconcile [post]
func (h *JobHandlers) RunReconciliation(c echo.Context) error {
	report, err := h.reconciler.Run(c.Request().Context())
	if err != nil {
		return common.SendServerError(c, "Reconciliation failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// RunArchive exports one UTC day of audit entries. The day query parameter
// defaults to yesterday.
func (h *JobHandlers) RunArchive(c echo.Context) error {
	if h.archive == nil {
		return c.JSON(http.StatusServiceUnavailable, common.CreateErrorResponse("ARCHIVE_DISABLED", "Object storage is not configured", nil))
	}

	day := time.Now().UTC().AddDate(0, 0, -1)
	if d := c.QueryParam("day"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return common.SendValidationError(c, "day", "Use YYYY-MM-DD")
		}
		day = parsed
	}

	n, err := h.archive.ArchiveDay(c.Request().Context(), day)
	if err != nil {
		return common.SendServerError(c, "Archive failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"day":      day.Format("2006-01-02"),
		"archived": n,
	})
}
