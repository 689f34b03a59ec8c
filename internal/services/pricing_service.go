package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"verimeter/internal/caching"
	"verimeter/internal/config"
	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type PricingService interface {
	// ResolvePrice applies tenant override, then platform default
	ResolvePrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePricing, error)
	GetAllPrices(ctx context.Context, tenantID string) ([]*models.ServicePricing, error)

	SetTenantPrice(ctx context.Context, tenantID, serviceCode string, price decimal.Decimal, currency, updatedBy string) error
	RemoveTenantPrice(ctx context.Context, tenantID, serviceCode, removedBy string) error

	SetDefaultPrice(ctx context.Context, serviceCode string, price decimal.Decimal, currency, description string) error
	SeedDefaults(ctx context.Context, defaults *config.PricingDefaults) error
}

type pricingService struct {
	priceRepo       repositories.PriceRepository
	cache           caching.CacheService
	audit           AuditLogsService
	defaultCurrency string
	logger          *logrus.Logger
}

func NewPricingService(priceRepo repositories.PriceRepository, cache caching.CacheService, audit AuditLogsService, defaultCurrency string, logger *logrus.Logger) PricingService {
	if cache == nil {
		cache = caching.NewNoopCacheService()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &pricingService{
		priceRepo:       priceRepo,
		cache:           cache,
		audit:           audit,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

func (s *pricingService) tenantPrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePrice, error) {
	cached, err := s.cache.GetTenantPrice(ctx, tenantID, serviceCode)
	if err != nil {
		s.logger.WithError(err).Warn("price cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	price, err := s.priceRepo.GetTenantPrice(ctx, tenantID, serviceCode)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetTenantPrice(ctx, price); err != nil {
		s.logger.WithError(err).Warn("price cache write failed")
	}
	return price, nil
}

func (s *pricingService) defaultPrice(ctx context.Context, serviceCode string) (*models.DefaultPrice, error) {
	cached, err := s.cache.GetDefaultPrice(ctx, serviceCode)
	if err != nil {
		s.logger.WithError(err).Warn("price cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	price, err := s.priceRepo.GetDefaultPrice(ctx, serviceCode)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetDefaultPrice(ctx, price); err != nil {
		s.logger.WithError(err).Warn("price cache write failed")
	}
	return price, nil
}

func (s *pricingService) ResolvePrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePricing, error) {
	override, err := s.tenantPrice(ctx, tenantID, serviceCode)
	switch {
	case err == nil:
		return &models.ServicePricing{
			ServiceCode: serviceCode,
			Price:       override.Price,
			Currency:    override.Currency,
			Source:      models.PriceSourceTenantOverride,
		}, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to read tenant price: %w", err)
	}

	def, err := s.defaultPrice(ctx, serviceCode)
	switch {
	case err == nil:
		return &models.ServicePricing{
			ServiceCode: serviceCode,
			Price:       def.Price,
			Currency:    def.Currency,
			Source:      models.PriceSourcePlatformDefault,
		}, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrPriceNotConfigured
	default:
		return nil, fmt.Errorf("failed to read default price: %w", err)
	}
}

func (s *pricingService) GetAllPrices(ctx context.Context, tenantID string) ([]*models.ServicePricing, error) {
	defaults, err := s.priceRepo.ListDefaultPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list default prices: %w", err)
	}
	overrides, err := s.priceRepo.ListTenantPrices(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant prices: %w", err)
	}

	codes := make(map[string]struct{}, len(defaults)+len(overrides))
	for _, d := range defaults {
		codes[d.ServiceCode] = struct{}{}
	}
	for _, o := range overrides {
		codes[o.ServiceCode] = struct{}{}
	}

	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	prices := make([]*models.ServicePricing, 0, len(sorted))
	for _, code := range sorted {
		p, err := s.ResolvePrice(ctx, tenantID, code)
		if errors.Is(err, ErrPriceNotConfigured) {
			// removed between listing and resolving
			continue
		}
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func (s *pricingService) validate(serviceCode string, price decimal.Decimal) error {
	if strings.TrimSpace(serviceCode) == "" {
		return errors.New("service_code is required")
	}
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if !models.FitsMoneyScale(price) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidPrice, models.MoneyScale)
	}
	return nil
}

func (s *pricingService) SetTenantPrice(ctx context.Context, tenantID, serviceCode string, price decimal.Decimal, currency, updatedBy string) error {
	if tenantID == "" {
		return errors.New("tenant_id is required")
	}
	if err := s.validate(serviceCode, price); err != nil {
		return err
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	metadata := models.JSONB{
		"price":    price.String(),
		"currency": currency,
	}
	if previous, err := s.priceRepo.GetTenantPrice(ctx, tenantID, serviceCode); err == nil {
		metadata["previous_price"] = previous.Price.String()
	}

	row := &models.ServicePrice{
		TenantID:    tenantID,
		ServiceCode: serviceCode,
		Price:       price,
		Currency:    currency,
	}
	if updatedBy != "" {
		row.UpdatedBy = &updatedBy
	}
	if err := s.priceRepo.UpsertTenantPrice(ctx, row); err != nil {
		return fmt.Errorf("failed to set tenant price: %w", err)
	}
	if err := s.cache.DeleteTenantPrice(ctx, tenantID, serviceCode); err != nil {
		s.logger.WithError(err).Error("failed to invalidate price cache")
	}

	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventPriceUpdated,
		EventResult:  models.EventResultAllowed,
		ActorID:      updatedBy,
		TargetEntity: models.TargetPrice,
		TargetID:     serviceCode,
		Message:      fmt.Sprintf("price for %s set to %s %s", serviceCode, price.String(), currency),
		Metadata:     metadata,
	})
}

func (s *pricingService) RemoveTenantPrice(ctx context.Context, tenantID, serviceCode, removedBy string) error {
	previous, err := s.priceRepo.GetTenantPrice(ctx, tenantID, serviceCode)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPriceNotConfigured
		}
		return err
	}

	if err := s.priceRepo.DeleteTenantPrice(ctx, tenantID, serviceCode); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPriceNotConfigured
		}
		return fmt.Errorf("failed to remove tenant price: %w", err)
	}
	if err := s.cache.DeleteTenantPrice(ctx, tenantID, serviceCode); err != nil {
		s.logger.WithError(err).Error("failed to invalidate price cache")
	}

	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     tenantID,
		EventType:    models.EventPriceRemoved,
		EventResult:  models.EventResultAllowed,
		ActorID:      removedBy,
		TargetEntity: models.TargetPrice,
		TargetID:     serviceCode,
		Message:      fmt.Sprintf("price override for %s removed", serviceCode),
		Metadata: models.JSONB{
			"previous_price": previous.Price.String(),
			"currency":       previous.Currency,
		},
	})
}

func (s *pricingService) SetDefaultPrice(ctx context.Context, serviceCode string, price decimal.Decimal, currency, description string) error {
	if err := s.validate(serviceCode, price); err != nil {
		return err
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	row := &models.DefaultPrice{
		ServiceCode: serviceCode,
		Price:       price,
		Currency:    currency,
		Description: description,
	}
	if err := s.priceRepo.UpsertDefaultPrice(ctx, row); err != nil {
		return fmt.Errorf("failed to set default price: %w", err)
	}
	if err := s.cache.DeleteDefaultPrice(ctx, serviceCode); err != nil {
		s.logger.WithError(err).Error("failed to invalidate price cache")
	}
	return nil
}

// SeedDefaults upserts every entry of the startup price table
func (s *pricingService) SeedDefaults(ctx context.Context, defaults *config.PricingDefaults) error {
	if err := defaults.Validate(); err != nil {
		return err
	}
	codes := make([]string, 0, len(defaults.Services))
	for code := range defaults.Services {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		price, currency, _ := defaults.PriceFor(code)
		if err := s.SetDefaultPrice(ctx, code, price, currency, defaults.Services[code].Description); err != nil {
			return fmt.Errorf("failed to seed %s: %w", code, err)
		}
	}
	s.logger.WithField("services", len(codes)).Info("platform default prices seeded")
	return nil
}
