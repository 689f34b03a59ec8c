package services

import (
	"context"
	"errors"
	"fmt"

	"verimeter/internal/common"
	"verimeter/internal/metrics"
	"verimeter/internal/models"

	"github.com/sirupsen/logrus"
)

// Gatekeeper decides whether a tenant may invoke a paid service. It never
// moves money; the caller charges the returned price after doing the work.
type Gatekeeper interface {
	Authorize(ctx context.Context, tenantID, serviceCode string) (*models.ServicePricing, error)
}

type gatekeeper struct {
	status  AccountStatusService
	pricing PricingService
	wallets WalletService
	audit   AuditLogsService
	logger  *logrus.Logger
}

func NewGatekeeper(status AccountStatusService, pricing PricingService, wallets WalletService, audit AuditLogsService, logger *logrus.Logger) Gatekeeper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &gatekeeper{
		status:  status,
		pricing: pricing,
		wallets: wallets,
		audit:   audit,
		logger:  logger,
	}
}

// Authorize runs the checks in a fixed order and stops at the first failure:
// caller identity, effective account status, price, balance.
func (g *gatekeeper) Authorize(ctx context.Context, tenantID, serviceCode string) (*models.ServicePricing, error) {
	actorID, ok := common.GetActorIDFromContext(ctx)
	if !ok && !common.IsSystemActor(ctx) {
		metrics.RecordDecision("unauthorized", "NO_ACTOR")
		return nil, ErrUnauthorized
	}
	if tenantID == "" {
		metrics.RecordDecision("unauthorized", "NO_TENANT")
		return nil, ErrUnauthorized
	}

	log := g.logger.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"service_code": serviceCode,
		"actor_id":     actorID,
	})

	active, err := g.status.IsActive(ctx, tenantID, models.EntityTypeTenant)
	if err != nil {
		metrics.RecordDecision("error", "STATUS_CHECK")
		log.WithError(err).Error("account status check failed")
		return nil, err
	}
	if !active {
		return nil, g.block(ctx, tenantID, serviceCode, models.ReasonAccountDisabled,
			"account is disabled", nil, ErrAccountDisabled)
	}

	pricing, err := g.pricing.ResolvePrice(ctx, tenantID, serviceCode)
	if err != nil {
		if errors.Is(err, ErrPriceNotConfigured) {
			return nil, g.block(ctx, tenantID, serviceCode, models.ReasonPriceNotConfigured,
				fmt.Sprintf("no price configured for %s", serviceCode), nil, ErrPriceNotConfigured)
		}
		metrics.RecordDecision("error", "PRICE_LOOKUP")
		log.WithError(err).Error("price resolution failed")
		return nil, err
	}

	balance, err := g.wallets.GetBalance(ctx, tenantID)
	if err != nil {
		metrics.RecordDecision("error", "BALANCE_LOOKUP")
		log.WithError(err).Error("balance lookup failed")
		return nil, err
	}
	if balance.LessThan(pricing.Price) {
		insufficient := &InsufficientBalanceError{
			Required:  pricing.Price,
			Available: balance,
			Currency:  pricing.Currency,
		}
		return nil, g.block(ctx, tenantID, serviceCode, models.ReasonInsufficientBalance,
			insufficient.Error(), models.JSONB{
				"required":  pricing.Price.String(),
				"available": balance.String(),
				"currency":  pricing.Currency,
			}, insufficient)
	}

	metrics.RecordDecision(string(models.EventResultAllowed), "")
	log.WithField("price", pricing.Price.String()).Debug("service access allowed")
	return pricing, nil
}

// block writes the BLOCKED entry and returns the business error, joined
// with the audit failure when the audit store runs strict
func (g *gatekeeper) block(ctx context.Context, tenantID, serviceCode, reason, message string, metadata models.JSONB, cause error) error {
	metrics.RecordDecision(string(models.EventResultBlocked), reason)
	if metadata == nil {
		metadata = models.JSONB{}
	}
	metadata["service_code"] = serviceCode

	auditErr := g.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventServiceAccess,
		EventResult:  models.EventResultBlocked,
		TargetEntity: models.TargetService,
		TargetID:     serviceCode,
		ReasonCode:   &reason,
		Message:      message,
		Metadata:     metadata,
	})
	return withAuditErr(cause, auditErr)
}
