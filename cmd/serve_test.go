package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"verimeter/internal/config"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	cfg := &config.Config{
		Store:                config.StoreMemory,
		AuditFailureMode:     config.AuditModeFallback,
		DefaultCurrency:      "USD",
		JWTSecret:            "s3cret",
		ReconcileConcurrency: 2,
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger, _ := test.NewNullLogger()
	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewEcho_PublicRoutes(t *testing.T) {
	a := memoryApp(t, nil)
	auth, err := authMiddleware(a)
	require.NoError(t, err)
	e := newEcho(a, auth, nil)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health").Code)
	assert.Equal(t, http.StatusOK, get("/health/live").Code)
	assert.Equal(t, http.StatusOK, get("/health/ready").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get("/v9/tenants/acme/wallet").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/v1/tenants/acme/wallet").Code)
	assert.NotEmpty(t, get("/health").Header().Get("X-Request-Id"))
}

func TestAuthMiddleware_RequiresKeyMaterial(t *testing.T) {
	a := memoryApp(t, func(c *config.Config) { c.JWTSecret = "" })
	_, err := authMiddleware(a)
	assert.Error(t, err)
}

func TestNewApp_SeedsPricingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency = "EUR"

[services.sms]
price = "0.05"
description = "outbound sms"
`), 0o600))

	a := memoryApp(t, func(c *config.Config) { c.PricingDefaultsFile = path })

	pricing, err := a.pricing.ResolvePrice(context.Background(), "anyone", "sms")
	require.NoError(t, err)
	assert.Equal(t, "0.05", pricing.Price.String())
	assert.Equal(t, "EUR", pricing.Currency)
}

func TestReconcileCommand_MemoryStore(t *testing.T) {
	t.Setenv("STORE", config.StoreMemory)
	t.Setenv("JWT_SECRET", "x")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"reconcile"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"checked": 0`)
}
