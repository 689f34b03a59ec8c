package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"verimeter/internal/models"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PriceRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    PriceRepository
	context context.Context
}

func (suite *PriceRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewPriceRepo(mock)
	suite.context = context.Background()
}

func (suite *PriceRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestPriceRepoTestSuite(t *testing.T) {
	suite.Run(t, new(PriceRepoTestSuite))
}

func (suite *PriceRepoTestSuite) TestGetTenantPrice_Success() {
	now := time.Now()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM service_prices`)).
		WithArgs("tenant-1", "OCR").
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "service_code", "price", "currency", "updated_by", "updated_at"}).
			AddRow("tenant-1", "OCR", decimal.RequireFromString("2.50"), "USD", stringPtr("admin-1"), now))

	price, err := suite.repo.GetTenantPrice(suite.context, "tenant-1", "OCR")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), price.Price.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(suite.T(), "USD", price.Currency)
}

func (suite *PriceRepoTestSuite) TestGetTenantPrice_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM service_prices`)).
		WithArgs("tenant-1", "OCR").
		WillReturnError(pgx.ErrNoRows)

	price, err := suite.repo.GetTenantPrice(suite.context, "tenant-1", "OCR")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), price)
}

func (suite *PriceRepoTestSuite) TestUpsertTenantPrice() {
	price := &models.ServicePrice{
		TenantID:    "tenant-1",
		ServiceCode: "OCR",
		Price:       decimal.NewFromInt(3),
		Currency:    "USD",
		UpdatedBy:   stringPtr("admin-1"),
	}

	suite.mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (tenant_id, service_code)`)).
		WithArgs(price.TenantID, price.ServiceCode, pgxmock.AnyArg(), price.Currency, price.UpdatedBy).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.UpsertTenantPrice(suite.context, price)
	assert.NoError(suite.T(), err)
}

func (suite *PriceRepoTestSuite) TestDeleteTenantPrice_NotFound() {
	suite.mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM service_prices`)).
		WithArgs("tenant-1", "OCR").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := suite.repo.DeleteTenantPrice(suite.context, "tenant-1", "OCR")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *PriceRepoTestSuite) TestGetDefaultPrice_ZeroIsAValue() {
	now := time.Now()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM default_prices`)).
		WithArgs("PING").
		WillReturnRows(pgxmock.NewRows([]string{"service_code", "price", "currency", "description", "updated_at"}).
			AddRow("PING", decimal.Zero, "USD", "free health probe", now))

	price, err := suite.repo.GetDefaultPrice(suite.context, "PING")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), price.Price.IsZero())
}

func (suite *PriceRepoTestSuite) TestListDefaultPrices() {
	now := time.Now()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM default_prices`)).
		WillReturnRows(pgxmock.NewRows([]string{"service_code", "price", "currency", "description", "updated_at"}).
			AddRow("KYC", decimal.NewFromInt(5), "USD", "identity check", now).
			AddRow("OCR", decimal.NewFromInt(1), "USD", "document scan", now))

	prices, err := suite.repo.ListDefaultPrices(suite.context)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), prices, 2)
	assert.Equal(suite.T(), "KYC", prices[0].ServiceCode)
}
