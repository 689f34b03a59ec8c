package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "verimeter/docs"
	"verimeter/internal/handlers"
	"verimeter/internal/jobs/background"
	"verimeter/internal/middleware"
	"verimeter/internal/services"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func authMiddleware(a *app) (echo.MiddlewareFunc, error) {
	opts := middleware.JWTOptions{Secret: a.cfg.JWTSecret}
	if a.cfg.JWKSURL != "" {
		jwks, err := middleware.NewJWKS(a.cfg.JWKSURL, time.Hour)
		if err != nil {
			return nil, fmt.Errorf("failed to load JWKS: %w", err)
		}
		opts.JWKS = jwks
	} else if a.cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET or JWKS_URL is required")
	}
	return middleware.JWTMiddleware(opts), nil
}

func newEcho(a *app, auth echo.MiddlewareFunc, jobs *handlers.JobHandlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	versions := middleware.NewVersionMiddleware()
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Pre(versions.RejectUnknownVersion())

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	if len(a.cfg.CORSOrigins) > 0 {
		e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
			AllowOrigins: a.cfg.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "Idempotency-Key"},
		}))
	}
	e.Use(middleware.Metrics())
	e.Use(middleware.AuditContext())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	db, cache, storage := a.pingers()
	h := handlers.NewHandlers(a.status, a.pricing, a.wallets, a.audit, a.gate, handlers.NewHealthHandlers(db, cache, storage, version))
	h.Jobs = jobs
	handlers.RegisterRoutes(e, h, a.gate, auth)
	return e
}

func serve(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	auth, err := authMiddleware(a)
	if err != nil {
		return err
	}

	var archive services.AuditArchiveService
	if a.archive != nil {
		archive = services.NewAuditArchiveService(a.auditRepo, a.archive, logger)
	}
	reconciler := background.NewReconciler(a.wallets, cfg.ReconcileConcurrency, logger)
	e := newEcho(a, auth, handlers.NewJobHandlers(reconciler, archive))

	scheduler, err := background.NewJobScheduler(
		reconciler,
		background.SchedulerOptions{
			ReconcileInterval: cfg.ReconcileInterval,
			ArchiveInterval:   cfg.ArchiveInterval,
			Archive:           archive,
		},
		logger,
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.WithError(err).Warn("scheduler did not stop cleanly")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
