package main

import (
	"context"
	"fmt"
	"io"

	"verimeter/internal/caching"
	"verimeter/internal/config"
	"verimeter/internal/events"
	"verimeter/internal/handlers"
	"verimeter/internal/logging"
	"verimeter/internal/repositories"
	"verimeter/internal/repositories/memory"
	"verimeter/internal/services"
	"verimeter/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// app holds every long-lived dependency a command needs
type app struct {
	cfg    *config.Config
	logger *logrus.Logger

	pool      *pgxpool.Pool
	cache     caching.CacheService
	publisher events.AuditPublisher
	archive   services.ArchiveStore

	entityRepo repositories.EntityRepository
	priceRepo  repositories.PriceRepository
	walletRepo repositories.WalletRepository
	auditRepo  repositories.AuditLogsRepository

	audit   services.AuditLogsService
	status  services.AccountStatusService
	pricing services.PricingService
	wallets services.WalletService
	gate    services.Gatekeeper

	closers []io.Closer
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	logger := logging.NewLoggerWithService("verimeter")
	config.LoadEnv(logger)
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initArchive(ctx)
	return a, nil
}

func (a *app) initStores(ctx context.Context) error {
	switch a.cfg.Store {
	case config.StorePostgres:
		if a.cfg.AutoMigrate {
			if err := database.MigrateUp(a.cfg.DatabaseURL, a.logger); err != nil {
				return err
			}
		}
		pool, err := database.NewPool(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return err
		}
		a.pool = pool
		a.entityRepo = repositories.NewEntityRepo(pool)
		a.priceRepo = repositories.NewPriceRepo(pool)
		a.walletRepo = repositories.NewWalletRepo(pool)
		a.auditRepo = repositories.NewAuditLogsRepo(pool)
	default:
		a.logger.Warn("using in-memory store; state is lost on exit")
		a.entityRepo = memory.NewEntityRepo()
		a.priceRepo = memory.NewPriceRepo()
		a.walletRepo = memory.NewWalletRepo()
		a.auditRepo = memory.NewAuditLogsRepo()
	}

	if a.cfg.RedisAddr != "" {
		a.cache = caching.NewRedisCacheService(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.cfg.CacheTTL, a.logger)
	} else {
		a.cache = caching.NewNoopCacheService()
	}

	if len(a.cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewKafkaAuditPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaAuditTopic, a.logger)
		a.closers = append(a.closers, a.publisher)
	} else {
		a.publisher = events.NewNoopAuditPublisher()
	}
	return nil
}

func (a *app) initServices(ctx context.Context) error {
	fallback, closer, err := logging.NewFallbackLogger(a.cfg.AuditFallbackPath)
	if err != nil {
		return fmt.Errorf("failed to open audit fallback log: %w", err)
	}
	a.closers = append(a.closers, closer)

	a.audit = services.NewAuditLogsService(a.auditRepo, services.AuditOptions{
		FailureMode: a.cfg.AuditFailureMode,
		Fallback:    fallback,
		Publisher:   a.publisher,
		Logger:      a.logger,
	})
	a.status = services.NewAccountStatusService(a.entityRepo, a.cache, a.audit, services.AccountStatusOptions{
		AllowUnknown:       a.cfg.StatusAllowUnknown,
		CacheRedeleteDelay: a.cfg.CacheRedeleteDelay,
		Logger:             a.logger,
	})
	a.pricing = services.NewPricingService(a.priceRepo, a.cache, a.audit, a.cfg.DefaultCurrency, a.logger)
	a.wallets = services.NewWalletService(a.walletRepo, a.audit, a.cfg.DefaultCurrency, a.logger)
	a.gate = services.NewGatekeeper(a.status, a.pricing, a.wallets, a.audit, a.logger)

	if a.cfg.PricingDefaultsFile != "" {
		defaults, err := config.LoadPricingDefaults(a.cfg.PricingDefaultsFile)
		if err != nil {
			return err
		}
		if err := a.pricing.SeedDefaults(ctx, defaults); err != nil {
			return fmt.Errorf("failed to seed default prices: %w", err)
		}
	}
	return nil
}

// initArchive is best effort: without object storage the archive job is
// simply not scheduled
func (a *app) initArchive(ctx context.Context) {
	if !a.cfg.MinioEnabled() {
		return
	}
	store, err := services.NewMinioArchiveStore(a.cfg.MinioEndpoint, a.cfg.MinioAccessKey, a.cfg.MinioSecretKey, a.cfg.MinioBucket, a.cfg.MinioUseSSL)
	if err != nil {
		a.logger.WithError(err).Warn("audit archive disabled")
		return
	}
	if err := store.EnsureBucketExists(ctx); err != nil {
		a.logger.WithError(err).WithField("bucket", a.cfg.MinioBucket).Warn("audit archive bucket unavailable")
	}
	a.archive = store
}

// pingers returns only the dependencies that are actually configured
func (a *app) pingers() (db, cache, storage handlers.Pinger) {
	if a.pool != nil {
		db = a.pool
	}
	if a.cfg.RedisAddr != "" {
		cache = a.cache
	}
	if a.archive != nil {
		storage = a.archive
	}
	return db, cache, storage
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.WithError(err).Warn("close failed")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
