package handlers

import (
	"verimeter/internal/middleware"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler set the server exposes
type Handlers struct {
	Tenants *TenantHandlers
	Pricing *PricingHandlers
	Wallets *WalletHandlers
	Usage   *UsageHandlers
	Audit   *AuditLogsHandlers
	Health  *HealthHandlers

	// Jobs is optional; without it the admin job routes are not mounted
	Jobs *JobHandlers
}

// NewHandlers builds the handler sets over the core services
func NewHandlers(
	status services.AccountStatusService,
	pricing services.PricingService,
	wallets services.WalletService,
	audit services.AuditLogsService,
	gate services.Gatekeeper,
	health *HealthHandlers,
) *Handlers {
	return &Handlers{
		Tenants: NewTenantHandlers(status),
		Pricing: NewPricingHandlers(pricing),
		Wallets: NewWalletHandlers(wallets),
		Usage:   NewUsageHandlers(wallets, gate),
		Audit:   NewAuditLogsHandlers(audit),
		Health:  health,
	}
}

// RegisterRoutes mounts the API. auth must populate the actor and tenant on
// the request context (see middleware.JWTMiddleware).
func RegisterRoutes(e *echo.Echo, h *Handlers, gate services.Gatekeeper, auth echo.MiddlewareFunc) {
	if h.Health != nil {
		e.GET("/health", h.Health.HealthCheck)
		e.GET("/health/ready", h.Health.ReadinessCheck)
		e.GET("/health/live", h.Health.LivenessCheck)
	}

	versions := middleware.NewVersionMiddleware()
	v1 := e.Group("/v1", versions.VersionHeader("v1"), auth)

	admin := middleware.RequireRole(middleware.RolePlatformAdmin)

	// Entity lifecycle is a platform operation
	entities := v1.Group("/entities", admin)
	entities.POST("", h.Tenants.ProvisionEntity)
	entities.GET("", h.Tenants.ListEntities)
	entities.GET("/:entity_id", h.Tenants.GetEntity)
	entities.GET("/:entity_id/status", h.Tenants.GetEntityStatus)
	entities.POST("/:entity_id/disable", h.Tenants.DisableEntity)
	entities.POST("/:entity_id/enable", h.Tenants.EnableEntity)

	v1.PUT("/prices/:service_code", h.Pricing.SetDefaultPrice, admin)

	if h.Jobs != nil {
		jobs := v1.Group("/admin/jobs", admin)
		jobs.POST("/reconcile", h.Jobs.RunReconciliation)
		jobs.POST("/archive", h.Jobs.RunArchive)
	}

	tenant := v1.Group("/tenants/:tenant_id",
		middleware.RequireRole(middleware.RolePlatformAdmin, middleware.RoleTenantAdmin),
		middleware.TenantFromPath("tenant_id"),
	)
	tenant.GET("/prices", h.Pricing.ListPrices)
	tenant.GET("/prices/:service_code", h.Pricing.ResolvePrice)
	tenant.PUT("/prices/:service_code", h.Pricing.SetTenantPrice, admin)
	tenant.DELETE("/prices/:service_code", h.Pricing.RemoveTenantPrice, admin)

	tenant.GET("/wallet", h.Wallets.GetBalance)
	tenant.GET("/wallet/transactions", h.Wallets.ListTransactions)
	tenant.POST("/wallet/topup", h.Wallets.Topup, admin)
	tenant.POST("/wallet/refund", h.Wallets.Refund, admin)
	tenant.POST("/wallet/reconcile", h.Wallets.Reconcile, admin)

	tenant.GET("/audit-logs", h.Audit.ListAuditLogs)
	tenant.GET("/audit-logs/summary", h.Audit.GetAuditSummary)
	tenant.GET("/audit-logs/:log_id", h.Audit.GetAuditLog)

	// Metered calls act on the caller's own tenant. RecordUsage runs
	// admission itself after checking for an earlier charge.
	metered := v1.Group("/services/:service_code",
		middleware.RequireRole(middleware.RoleService, middleware.RoleTenantAdmin),
		middleware.TenantFromPath(""),
	)
	metered.POST("/authorize", h.Usage.Authorize, middleware.RequireAdmission(gate, "service_code"))
	metered.POST("/usage", h.Usage.RecordUsage)
}
