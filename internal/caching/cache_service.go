package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"verimeter/internal/metrics"
	"verimeter/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService keeps hot entity and price rows close to the gatekeeper. A nil
// result with a nil error is a miss.
type CacheService interface {
	// Entity caching
	GetEntity(ctx context.Context, entityID string) (*models.Entity, error)
	SetEntity(ctx context.Context, entity *models.Entity) error
	DeleteEntity(ctx context.Context, entityID string) error

	// Tenant price override caching
	GetTenantPrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePrice, error)
	SetTenantPrice(ctx context.Context, price *models.ServicePrice) error
	DeleteTenantPrice(ctx context.Context, tenantID, serviceCode string) error

	// Platform default caching
	GetDefaultPrice(ctx context.Context, serviceCode string) (*models.DefaultPrice, error)
	SetDefaultPrice(ctx context.Context, price *models.DefaultPrice) error
	DeleteDefaultPrice(ctx context.Context, serviceCode string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCacheService(addr, password string, db int, ttl time.Duration, logger *logrus.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.WithError(pingErr).WithField("address", parsedAddr).Warn("Redis ping failed on initialization")
	} else {
		logger.WithField("address", parsedAddr).Debug("Redis connection established")
	}

	return NewRedisCacheServiceWithClient(client, ttl)
}

func NewRedisCacheServiceWithClient(client *redis.Client, ttl time.Duration) CacheService {
	return &redisCacheService{client: client, ttl: ttl}
}

func entityKey(entityID string) string {
	return fmt.Sprintf("verimeter:entity:%s", entityID)
}

func tenantPriceKey(tenantID, serviceCode string) string {
	return fmt.Sprintf("verimeter:price:%s:%s", tenantID, serviceCode)
}

func defaultPriceKey(serviceCode string) string {
	return fmt.Sprintf("verimeter:default_price:%s", serviceCode)
}

func (r *redisCacheService) get(ctx context.Context, kind, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(kind, false)
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	metrics.RecordCacheLookup(kind, true)
	return true, nil
}

func (r *redisCacheService) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, string(data), r.ttl).Err()
}

func (r *redisCacheService) GetEntity(ctx context.Context, entityID string) (*models.Entity, error) {
	var entity models.Entity
	found, err := r.get(ctx, "entity", entityKey(entityID), &entity)
	if err != nil || !found {
		return nil, err
	}
	return &entity, nil
}

func (r *redisCacheService) SetEntity(ctx context.Context, entity *models.Entity) error {
	return r.set(ctx, entityKey(entity.ID), entity)
}

func (r *redisCacheService) DeleteEntity(ctx context.Context, entityID string) error {
	return r.client.Del(ctx, entityKey(entityID)).Err()
}

func (r *redisCacheService) GetTenantPrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePrice, error) {
	var price models.ServicePrice
	found, err := r.get(ctx, "tenant_price", tenantPriceKey(tenantID, serviceCode), &price)
	if err != nil || !found {
		return nil, err
	}
	return &price, nil
}

func (r *redisCacheService) SetTenantPrice(ctx context.Context, price *models.ServicePrice) error {
	return r.set(ctx, tenantPriceKey(price.TenantID, price.ServiceCode), price)
}

func (r *redisCacheService) DeleteTenantPrice(ctx context.Context, tenantID, serviceCode string) error {
	return r.client.Del(ctx, tenantPriceKey(tenantID, serviceCode)).Err()
}

func (r *redisCacheService) GetDefaultPrice(ctx context.Context, serviceCode string) (*models.DefaultPrice, error) {
	var price models.DefaultPrice
	found, err := r.get(ctx, "default_price", defaultPriceKey(serviceCode), &price)
	if err != nil || !found {
		return nil, err
	}
	return &price, nil
}

func (r *redisCacheService) SetDefaultPrice(ctx context.Context, price *models.DefaultPrice) error {
	return r.set(ctx, defaultPriceKey(price.ServiceCode), price)
}

func (r *redisCacheService) DeleteDefaultPrice(ctx context.Context, serviceCode string) error {
	return r.client.Del(ctx, defaultPriceKey(serviceCode)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// noopCacheService is used when Redis is not configured; every lookup misses
type noopCacheService struct{}

func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) GetEntity(context.Context, string) (*models.Entity, error) { return nil, nil }
func (noopCacheService) SetEntity(context.Context, *models.Entity) error          { return nil }
func (noopCacheService) DeleteEntity(context.Context, string) error               { return nil }
func (noopCacheService) GetTenantPrice(context.Context, string, string) (*models.ServicePrice, error) {
	return nil, nil
}
func (noopCacheService) SetTenantPrice(context.Context, *models.ServicePrice) error { return nil }
func (noopCacheService) DeleteTenantPrice(context.Context, string, string) error    { return nil }
func (noopCacheService) GetDefaultPrice(context.Context, string) (*models.DefaultPrice, error) {
	return nil, nil
}
func (noopCacheService) SetDefaultPrice(context.Context, *models.DefaultPrice) error { return nil }
func (noopCacheService) DeleteDefaultPrice(context.Context, string) error          { return nil }
func (noopCacheService) Ping(context.Context) error                                { return nil }
