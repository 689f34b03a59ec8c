package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"verimeter/internal/models"
	"verimeter/internal/repositories"
)

type priceKey struct {
	tenantID    string
	serviceCode string
}

type PriceStore struct {
	mu        sync.RWMutex
	overrides map[priceKey]*models.ServicePrice
	defaults  map[string]*models.DefaultPrice
}

func NewPriceRepo() *PriceStore {
	return &PriceStore{
		overrides: make(map[priceKey]*models.ServicePrice),
		defaults:  make(map[string]*models.DefaultPrice),
	}
}

var _ repositories.PriceRepository = (*PriceStore)(nil)

func (s *PriceStore) GetTenantPrice(_ context.Context, tenantID, serviceCode string) (*models.ServicePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.overrides[priceKey{tenantID, serviceCode}]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (s *PriceStore) UpsertTenantPrice(_ context.Context, price *models.ServicePrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *price
	stored.UpdatedAt = time.Now().UTC()
	s.overrides[priceKey{price.TenantID, price.ServiceCode}] = &stored
	return nil
}

func (s *PriceStore) DeleteTenantPrice(_ context.Context, tenantID, serviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := priceKey{tenantID, serviceCode}
	if _, ok := s.overrides[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.overrides, key)
	return nil
}

func (s *PriceStore) ListTenantPrices(_ context.Context, tenantID string) ([]*models.ServicePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ServicePrice
	for key, p := range s.overrides {
		if key.tenantID != tenantID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceCode < out[j].ServiceCode })
	return out, nil
}

func (s *PriceStore) GetDefaultPrice(_ context.Context, serviceCode string) (*models.DefaultPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.defaults[serviceCode]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (s *PriceStore) UpsertDefaultPrice(_ context.Context, price *models.DefaultPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *price
	stored.UpdatedAt = time.Now().UTC()
	s.defaults[price.ServiceCode] = &stored
	return nil
}

func (s *PriceStore) ListDefaultPrices(_ context.Context) ([]*models.DefaultPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DefaultPrice, 0, len(s.defaults))
	for _, p := range s.defaults {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceCode < out[j].ServiceCode })
	return out, nil
}
