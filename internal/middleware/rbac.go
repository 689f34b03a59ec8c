package middleware

import (
	"net/http"

	"verimeter/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers holding one of roles. System tokens pass every
// check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetActorIDFromContext(ctx); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if common.IsSystemActor(ctx) {
				return next(c)
			}
			if _, ok := allowed[common.GetActorRoleFromContext(ctx)]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// TenantFromPath resolves the tenant a request acts on. Platform admins and
// system callers may address any tenant through the :tenant_id parameter;
// everyone else is pinned to the tenant in their token.
func TenantFromPath(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			requested := c.Param(param)
			own, hasOwn := common.GetTenantIDFromContext(ctx)

			privileged := common.IsSystemActor(ctx) || common.GetActorRoleFromContext(ctx) == RolePlatformAdmin
			switch {
			case requested == "":
				if !hasOwn {
					return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
				}
			case privileged:
				c.SetRequest(c.Request().WithContext(common.WithTenant(ctx, requested)))
			case !hasOwn || requested != own:
				return echo.NewHTTPError(http.StatusForbidden, "Cannot act on another tenant")
			}
			return next(c)
		}
	}
}
