package middleware

import (
	"verimeter/internal/common"

	"github.com/labstack/echo/v4"
)

// AuditContext copies caller details onto the request context so every audit
// entry written while serving the request carries them. Run it after
// echo's RequestID middleware.
func AuditContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = req.Header.Get(echo.HeaderXRequestID)
			}

			ctx := common.WithRequestMeta(req.Context(), common.RequestMeta{
				IPAddress: c.RealIP(),
				UserAgent: truncate(req.UserAgent(), 512),
				RequestID: requestID,
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
