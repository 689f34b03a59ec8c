package middleware

import (
	"net/http"
	"time"

	"verimeter/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	RolePlatformAdmin = "platform_admin"
	RoleTenantAdmin   = "tenant_admin"
	RoleService       = "service"
	RoleSystem        = "system"
)

// Claims carried by bearer tokens. The subject is the actor ID.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTOptions struct {
	// Secret signs HS256 tokens. Ignored when JWKS is set.
	Secret string
	JWKS   *keyfunc.JWKS
}

// NewJWKS fetches signing keys from url and refreshes them in the background
func NewJWKS(url string, refresh time.Duration) (*keyfunc.JWKS, error) {
	return keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshUnknownKID: true,
	})
}

func JWTConfig(opts JWTOptions) echojwt.Config {
	cfg := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		SuccessHandler: claimsToContext,
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
	if opts.JWKS != nil {
		cfg.KeyFunc = opts.JWKS.Keyfunc
	} else {
		cfg.SigningKey = []byte(opts.Secret)
	}
	return cfg
}

// JWTMiddleware validates the bearer token and copies its claims onto the
// request context
func JWTMiddleware(opts JWTOptions) echo.MiddlewareFunc {
	return echojwt.WithConfig(JWTConfig(opts))
}

func claimsToContext(c echo.Context) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return
	}

	ctx := c.Request().Context()
	if claims.Role == RoleSystem {
		ctx = common.WithSystemActor(ctx, claims.Subject)
	} else {
		ctx = common.WithActor(ctx, claims.Subject, claims.Role)
	}
	if claims.TenantID != "" {
		ctx = common.WithTenant(ctx, claims.TenantID)
	}
	c.SetRequest(c.Request().WithContext(ctx))
}
