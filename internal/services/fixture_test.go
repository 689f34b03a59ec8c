package services

import (
	"context"

	"verimeter/internal/common"
	"verimeter/internal/config"
	"verimeter/internal/models"
	"verimeter/internal/repositories/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// fixture wires every service over the in-memory stores
type fixture struct {
	entities *memory.EntityStore
	prices   *memory.PriceStore
	wallets  *memory.WalletStore
	audits   *memory.AuditStore

	audit   AuditLogsService
	status  AccountStatusService
	pricing PricingService
	wallet  WalletService
	gate    Gatekeeper

	fallbackHook *test.Hook
}

func newFixture(auditMode string) *fixture {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	fallback, hook := test.NewNullLogger()

	f := &fixture{
		entities:     memory.NewEntityRepo(),
		prices:       memory.NewPriceRepo(),
		wallets:      memory.NewWalletRepo(),
		audits:       memory.NewAuditLogsRepo(),
		fallbackHook: hook,
	}
	f.audit = NewAuditLogsService(f.audits, AuditOptions{
		FailureMode: auditMode,
		Fallback:    fallback,
		Logger:      logger,
	})
	f.status = NewAccountStatusService(f.entities, nil, f.audit, AccountStatusOptions{Logger: logger})
	f.pricing = NewPricingService(f.prices, nil, f.audit, "USD", logger)
	f.wallet = NewWalletService(f.wallets, f.audit, "USD", logger)
	f.gate = NewGatekeeper(f.status, f.pricing, f.wallet, f.audit, logger)
	return f
}

func newFallbackFixture() *fixture {
	return newFixture(config.AuditModeFallback)
}

func userCtx() context.Context {
	return common.WithActor(context.Background(), "user-1", "tenant_admin")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) tenant(ctx context.Context, id string, status models.EntityStatus) {
	if err := f.status.Provision(ctx, &models.Entity{ID: id, Type: models.EntityTypeTenant, Status: status}); err != nil {
		panic(err)
	}
}

func (f *fixture) subTenant(ctx context.Context, id, parent string, status models.EntityStatus) {
	if err := f.status.Provision(ctx, &models.Entity{ID: id, Type: models.EntityTypeSubTenant, Status: status, ParentID: &parent}); err != nil {
		panic(err)
	}
}

// logsFor returns audit entries of one event type, oldest first
func (f *fixture) logsFor(eventType string) []*models.AuditLog {
	var out []*models.AuditLog
	for _, l := range f.audits.All() {
		if l.EventType == eventType {
			out = append(out, l)
		}
	}
	return out
}
