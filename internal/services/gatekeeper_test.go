package services

import (
	"context"
	"errors"
	"testing"

	"verimeter/internal/config"
	"verimeter/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type GatekeeperTestSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func (suite *GatekeeperTestSuite) SetupTest() {
	suite.f = newFallbackFixture()
	suite.ctx = userCtx()
}

func TestGatekeeperTestSuite(t *testing.T) {
	suite.Run(t, new(GatekeeperTestSuite))
}

func (suite *GatekeeperTestSuite) blocked() []*models.AuditLog {
	return suite.f.logsFor(models.EventServiceAccess)
}

func (suite *GatekeeperTestSuite) TestAuthorize_Allowed() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "KYC_BASIC", dec("2.50"), "USD", ""))
	require.NoError(suite.T(), suite.f.wallet.Topup(suite.ctx, "t1", dec("10"), "pay-1", "admin"))
	before := len(suite.f.audits.All())

	pricing, err := suite.f.gate.Authorize(suite.ctx, "t1", "KYC_BASIC")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), pricing.Price.Equal(dec("2.50")))
	assert.Equal(suite.T(), models.PriceSourcePlatformDefault, pricing.Source)

	// read-only: no charge, no audit entry
	balance, _ := suite.f.wallet.GetBalance(suite.ctx, "t1")
	assert.True(suite.T(), balance.Equal(dec("10")))
	assert.Len(suite.T(), suite.f.audits.All(), before)
}

func (suite *GatekeeperTestSuite) TestAuthorize_NoActor() {
	_, err := suite.f.gate.Authorize(context.Background(), "t1", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrUnauthorized)
	assert.Empty(suite.T(), suite.f.audits.All())
}

func (suite *GatekeeperTestSuite) TestAuthorize_NoTenant() {
	_, err := suite.f.gate.Authorize(suite.ctx, "", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrUnauthorized)
	assert.Empty(suite.T(), suite.f.audits.All())
}

func (suite *GatekeeperTestSuite) TestAuthorize_DisabledWinsOverEverything() {
	// no price, no wallet, and disabled
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusDisabled)

	_, err := suite.f.gate.Authorize(suite.ctx, "t1", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrAccountDisabled)
	assert.NotErrorIs(suite.T(), err, ErrPriceNotConfigured)
	assert.NotErrorIs(suite.T(), err, ErrInsufficientBalance)

	logs := suite.blocked()
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), models.EventResultBlocked, logs[0].EventResult)
	assert.Equal(suite.T(), models.ReasonAccountDisabled, *logs[0].ReasonCode)
}

func (suite *GatekeeperTestSuite) TestAuthorize_UnknownTenantIsDisabled() {
	_, err := suite.f.gate.Authorize(suite.ctx, "ghost", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrAccountDisabled)
	assert.Len(suite.T(), suite.blocked(), 1)
}

func (suite *GatekeeperTestSuite) TestAuthorize_PriceBeforeBalance() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)

	_, err := suite.f.gate.Authorize(suite.ctx, "t1", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrPriceNotConfigured)

	logs := suite.blocked()
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), models.ReasonPriceNotConfigured, *logs[0].ReasonCode)
	assert.Equal(suite.T(), models.TargetService, logs[0].TargetEntity)
	assert.Equal(suite.T(), "KYC_BASIC", logs[0].TargetID)
}

func (suite *GatekeeperTestSuite) TestAuthorize_InsufficientFunds() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "KYC_BASIC", dec("2.50"), "USD", ""))
	require.NoError(suite.T(), suite.f.wallet.Topup(suite.ctx, "t1", dec("2.00"), "pay-1", "admin"))

	_, err := suite.f.gate.Authorize(suite.ctx, "t1", "KYC_BASIC")
	require.ErrorIs(suite.T(), err, ErrInsufficientBalance)

	var insufficient *InsufficientBalanceError
	require.True(suite.T(), errors.As(err, &insufficient))
	assert.True(suite.T(), insufficient.Required.Equal(dec("2.50")))
	assert.True(suite.T(), insufficient.Available.Equal(dec("2.00")))

	balance, _ := suite.f.wallet.GetBalance(suite.ctx, "t1")
	assert.True(suite.T(), balance.Equal(dec("2.00")))

	logs := suite.blocked()
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), models.ReasonInsufficientBalance, *logs[0].ReasonCode)
	assert.Equal(suite.T(), "2.5", logs[0].Metadata["required"])
	assert.Equal(suite.T(), "2", logs[0].Metadata["available"])
}

func (suite *GatekeeperTestSuite) TestAuthorize_ZeroPriceWithoutWallet() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "PING", decimal.Zero, "USD", ""))

	pricing, err := suite.f.gate.Authorize(suite.ctx, "t1", "PING")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), pricing.Price.IsZero())
}

func (suite *GatekeeperTestSuite) TestAuthorize_SubTenantOfDisabledParent() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	suite.f.subTenant(suite.ctx, "s1", "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "KYC_BASIC", dec("1"), "USD", ""))
	require.NoError(suite.T(), suite.f.wallet.Topup(suite.ctx, "s1", dec("10"), "pay-1", "admin"))
	require.NoError(suite.T(), suite.f.status.Disable(suite.ctx, "t1", models.EntityTypeTenant, "admin", "fraud"))

	_, err := suite.f.gate.Authorize(suite.ctx, "s1", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrAccountDisabled)

	require.NoError(suite.T(), suite.f.status.Enable(suite.ctx, "t1", models.EntityTypeTenant, "admin"))
	_, err = suite.f.gate.Authorize(suite.ctx, "s1", "KYC_BASIC")
	assert.NoError(suite.T(), err)
}

func (suite *GatekeeperTestSuite) TestAuthorize_HierarchyErrorPassesThrough() {
	a, b := "a", "b"
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: a, Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &b}))
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: b, Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &a}))

	_, err := suite.f.gate.Authorize(suite.ctx, a, "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)
	assert.Empty(suite.T(), suite.blocked())
}

func (suite *GatekeeperTestSuite) TestAuthorizeThenDeduct() {
	suite.f.tenant(suite.ctx, "t2", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "VOICE_CALL", dec("0.10"), "USD", ""))
	require.NoError(suite.T(), suite.f.pricing.SetTenantPrice(suite.ctx, "t2", "VOICE_CALL", dec("0.08"), "USD", "admin"))
	require.NoError(suite.T(), suite.f.wallet.Topup(suite.ctx, "t2", dec("1"), "pay-1", "admin"))

	pricing, err := suite.f.gate.Authorize(suite.ctx, "t2", "VOICE_CALL")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PriceSourceTenantOverride, pricing.Source)

	require.NoError(suite.T(), suite.f.wallet.Deduct(suite.ctx, "t2", pricing.Price, pricing.ServiceCode, "call-1", nil))
	balance, _ := suite.f.wallet.GetBalance(suite.ctx, "t2")
	assert.True(suite.T(), balance.Equal(dec("0.92")))
}

func (suite *GatekeeperTestSuite) TestAuthorize_StrictAuditJoinsErrors() {
	f := newFixture(config.AuditModeStrict)
	f.audits.FailWith = errors.New("connection refused")

	_, err := f.gate.Authorize(suite.ctx, "ghost", "KYC_BASIC")
	assert.ErrorIs(suite.T(), err, ErrAccountDisabled)
	assert.ErrorIs(suite.T(), err, ErrAuditWrite)
}

type MockWalletService struct {
	mock.Mock
	WalletService
}

func (m *MockWalletService) GetBalance(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (suite *GatekeeperTestSuite) TestAuthorize_BalanceLookupError() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.pricing.SetDefaultPrice(suite.ctx, "KYC_BASIC", dec("1"), "USD", ""))

	wallets := &MockWalletService{}
	wallets.On("GetBalance", mock.Anything, "t1").Return(decimal.Zero, errors.New("db down"))
	gate := NewGatekeeper(suite.f.status, suite.f.pricing, wallets, suite.f.audit, nil)

	_, err := gate.Authorize(suite.ctx, "t1", "KYC_BASIC")
	assert.EqualError(suite.T(), err, "db down")
	assert.Empty(suite.T(), suite.blocked())
	wallets.AssertExpectations(suite.T())
}
