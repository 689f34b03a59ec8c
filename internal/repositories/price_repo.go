package repositories

import (
	"context"

	"verimeter/internal/models"
)

// PriceRepository stores tenant price overrides and the platform default table
type PriceRepository interface {
	GetTenantPrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePrice, error)
	UpsertTenantPrice(ctx context.Context, price *models.ServicePrice) error
	DeleteTenantPrice(ctx context.Context, tenantID, serviceCode string) error
	ListTenantPrices(ctx context.Context, tenantID string) ([]*models.ServicePrice, error)

	GetDefaultPrice(ctx context.Context, serviceCode string) (*models.DefaultPrice, error)
	UpsertDefaultPrice(ctx context.Context, price *models.DefaultPrice) error
	ListDefaultPrices(ctx context.Context) ([]*models.DefaultPrice, error)
}

type priceRepo struct {
	db DB
}

func NewPriceRepo(db DB) PriceRepository {
	return &priceRepo{db: db}
}

func (r *priceRepo) GetTenantPrice(ctx context.Context, tenantID, serviceCode string) (*models.ServicePrice, error) {
	price := &models.ServicePrice{}
	query := `
		SELECT tenant_id, service_code, price, currency, updated_by, updated_at
		FROM service_prices
		WHERE tenant_id = $1 AND service_code = $2
	`
	err := r.db.QueryRow(ctx, query, tenantID, serviceCode).Scan(
		&price.TenantID, &price.ServiceCode, &price.Price, &price.Currency, &price.UpdatedBy, &price.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return price, nil
}

func (r *priceRepo) UpsertTenantPrice(ctx context.Context, price *models.ServicePrice) error {
	query := `
		INSERT INTO service_prices (tenant_id, service_code, price, currency, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id, service_code)
		DO UPDATE SET price = EXCLUDED.price, currency = EXCLUDED.currency,
			updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, price.TenantID, price.ServiceCode, price.Price, price.Currency, price.UpdatedBy)
	return err
}

func (r *priceRepo) DeleteTenantPrice(ctx context.Context, tenantID, serviceCode string) error {
	query := `DELETE FROM service_prices WHERE tenant_id = $1 AND service_code = $2`
	tag, err := r.db.Exec(ctx, query, tenantID, serviceCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *priceRepo) ListTenantPrices(ctx context.Context, tenantID string) ([]*models.ServicePrice, error) {
	query := `
		SELECT tenant_id, service_code, price, currency, updated_by, updated_at
		FROM service_prices
		WHERE tenant_id = $1
		ORDER BY service_code
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []*models.ServicePrice
	for rows.Next() {
		price := &models.ServicePrice{}
		if err := rows.Scan(&price.TenantID, &price.ServiceCode, &price.Price, &price.Currency, &price.UpdatedBy, &price.UpdatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}

func (r *priceRepo) GetDefaultPrice(ctx context.Context, serviceCode string) (*models.DefaultPrice, error) {
	price := &models.DefaultPrice{}
	query := `
		SELECT service_code, price, currency, description, updated_at
		FROM default_prices
		WHERE service_code = $1
	`
	err := r.db.QueryRow(ctx, query, serviceCode).Scan(
		&price.ServiceCode, &price.Price, &price.Currency, &price.Description, &price.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return price, nil
}

func (r *priceRepo) UpsertDefaultPrice(ctx context.Context, price *models.DefaultPrice) error {
	query := `
		INSERT INTO default_prices (service_code, price, currency, description, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (service_code)
		DO UPDATE SET price = EXCLUDED.price, currency = EXCLUDED.currency,
			description = EXCLUDED.description, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, price.ServiceCode, price.Price, price.Currency, price.Description)
	return err
}

func (r *priceRepo) ListDefaultPrices(ctx context.Context) ([]*models.DefaultPrice, error) {
	query := `
		SELECT service_code, price, currency, description, updated_at
		FROM default_prices
		ORDER BY service_code
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []*models.DefaultPrice
	for rows.Next() {
		price := &models.DefaultPrice{}
		if err := rows.Scan(&price.ServiceCode, &price.Price, &price.Currency, &price.Description, &price.UpdatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}
