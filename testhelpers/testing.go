package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"verimeter/internal/models"
	"verimeter/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every table. Tests are skipped when the variable is unset.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger, _ := test.NewNullLogger()
	if err := database.MigrateUp(connString, logger); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := database.NewPool(ctx, connString, logger)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	db := &TestDB{
		Pool: pool,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}
	truncate(t, db)
	t.Cleanup(func() { _ = db.Cleanup() })
	return db
}

func truncate(t *testing.T, db *TestDB) {
	t.Helper()
	// audit_logs rejects DELETE through its trigger; TRUNCATE bypasses row triggers
	_, err := db.Pool.Exec(context.Background(), `
		TRUNCATE wallet_transactions, wallets, service_prices, default_prices, audit_logs, entities
	`)
	if err != nil {
		t.Fatalf("Failed to truncate test tables: %v", err)
	}
}

// SetupTestTenant inserts an active root tenant
func SetupTestTenant(t *testing.T, db *TestDB, tenantID string) *models.Entity {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO entities (entity_id, entity_type, status, created_at, updated_at)
		VALUES ($1, 'TENANT', 'ACTIVE', NOW(), NOW())
	`, tenantID)
	if err != nil {
		t.Fatalf("Failed to create test tenant: %v", err)
	}
	return &models.Entity{ID: tenantID, Type: models.EntityTypeTenant, Status: models.EntityStatusActive}
}

// SetupTestDefaultPrice inserts a platform price
func SetupTestDefaultPrice(t *testing.T, db *TestDB, serviceCode, price, currency string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO default_prices (service_code, price, currency, description, updated_at)
		VALUES ($1, $2::numeric, $3, '', NOW())
	`, serviceCode, price, currency)
	if err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}
}
