package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"verimeter/internal/common"
	"verimeter/internal/config"
	"verimeter/internal/models"
	"verimeter/internal/repositories"
	"verimeter/internal/repositories/memory"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) Publish(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditPublisher) Close() error {
	return m.Called().Error(0)
}

type AuditLogsServiceTestSuite struct {
	suite.Suite
	repo      *memory.AuditStore
	publisher *MockAuditPublisher
	hook      *test.Hook
	service   AuditLogsService
	ctx       context.Context
}

func (suite *AuditLogsServiceTestSuite) SetupTest() {
	suite.repo = memory.NewAuditLogsRepo()
	suite.publisher = &MockAuditPublisher{}
	suite.publisher.Test(suite.T())

	logger, _ := test.NewNullLogger()
	fallback, hook := test.NewNullLogger()
	suite.hook = hook
	suite.service = NewAuditLogsService(suite.repo, AuditOptions{
		FailureMode: config.AuditModeFallback,
		Fallback:    fallback,
		Publisher:   suite.publisher,
		Logger:      logger,
	})
	suite.ctx = common.WithRequestMeta(
		common.WithActor(context.Background(), "user-1", "tenant_admin"),
		common.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8", RequestID: "req-abc"},
	)
}

func (suite *AuditLogsServiceTestSuite) TearDownTest() {
	suite.publisher.AssertExpectations(suite.T())
}

func TestAuditLogsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuditLogsServiceTestSuite))
}

func (suite *AuditLogsServiceTestSuite) entry(eventType string, result models.EventResult) *models.AuditLog {
	return &models.AuditLog{
		TenantID:     "t1",
		EventType:    eventType,
		EventResult:  result,
		TargetEntity: models.TargetService,
		TargetID:     "ocr",
	}
}

func (suite *AuditLogsServiceTestSuite) TestLog_FillsContext() {
	suite.publisher.On("Publish", mock.Anything, mock.AnythingOfType("*models.AuditLog")).Return(nil).Once()

	err := suite.service.Log(suite.ctx, suite.entry(models.EventServiceAccess, models.EventResultBlocked))
	require.NoError(suite.T(), err)

	logs := suite.repo.All()
	require.Len(suite.T(), logs, 1)
	stored := logs[0]
	assert.NotEqual(suite.T(), uuid.Nil, stored.ID)
	assert.False(suite.T(), stored.CreatedAt.IsZero())
	assert.Equal(suite.T(), "user-1", stored.ActorID)
	assert.Equal(suite.T(), "tenant_admin", stored.ActorRole)
	assert.Equal(suite.T(), models.ActorTypeUser, stored.ActorType)
	assert.Equal(suite.T(), "10.0.0.1", stored.IPAddress)
	assert.Equal(suite.T(), "curl/8", stored.UserAgent)
	assert.Equal(suite.T(), "req-abc", stored.RequestID)
}

func (suite *AuditLogsServiceTestSuite) TestLog_SystemActor() {
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	ctx := common.WithSystemActor(context.Background(), "reconciler")
	require.NoError(suite.T(), suite.service.Log(ctx, suite.entry(models.EventDeduction, models.EventResultAllowed)))

	stored := suite.repo.All()[0]
	assert.Equal(suite.T(), models.ActorTypeSystem, stored.ActorType)
	assert.NotEmpty(suite.T(), stored.RequestID)
}

func (suite *AuditLogsServiceTestSuite) TestLog_RequiresFields() {
	assert.Error(suite.T(), suite.service.Log(suite.ctx, &models.AuditLog{EventType: "X", EventResult: models.EventResultAllowed}))
	assert.Error(suite.T(), suite.service.Log(suite.ctx, &models.AuditLog{TenantID: "t1", EventResult: models.EventResultAllowed}))
	assert.Error(suite.T(), suite.service.Log(suite.ctx, &models.AuditLog{TenantID: "t1", EventType: "X"}))
	assert.Empty(suite.T(), suite.repo.All())
}

func (suite *AuditLogsServiceTestSuite) TestLog_FallbackOnStoreFailure() {
	suite.repo.FailWith = errors.New("connection refused")

	err := suite.service.Log(suite.ctx, suite.entry(models.EventServiceAccess, models.EventResultBlocked))
	require.NoError(suite.T(), err)

	require.Len(suite.T(), suite.hook.Entries, 1)
	last := suite.hook.LastEntry()
	assert.Equal(suite.T(), logrus.ErrorLevel, last.Level)
	diverted, ok := last.Data["audit_entry"].(*models.AuditLog)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), "t1", diverted.TenantID)
	suite.publisher.AssertNotCalled(suite.T(), "Publish", mock.Anything, mock.Anything)
}

func (suite *AuditLogsServiceTestSuite) TestLog_StrictModeReturnsError() {
	repo := memory.NewAuditLogsRepo()
	repo.FailWith = errors.New("connection refused")
	svc := NewAuditLogsService(repo, AuditOptions{FailureMode: config.AuditModeStrict})

	err := svc.Log(suite.ctx, suite.entry(models.EventServiceAccess, models.EventResultBlocked))
	assert.ErrorIs(suite.T(), err, ErrAuditWrite)
}

func (suite *AuditLogsServiceTestSuite) TestLog_PublishFailureIsNotFatal() {
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	err := suite.service.Log(suite.ctx, suite.entry(models.EventTopup, models.EventResultAllowed))
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), suite.repo.All(), 1)
}

func (suite *AuditLogsServiceTestSuite) seed() {
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		tenant string
		event  string
		result models.EventResult
		actor  string
	}{
		{"t1", models.EventServiceAccess, models.EventResultBlocked, "user-1"},
		{"t1", models.EventDeduction, models.EventResultAllowed, "user-1"},
		{"t1", models.EventDeduction, models.EventResultFailed, "user-2"},
		{"t1", models.EventTopup, models.EventResultAllowed, "admin"},
		{"t2", models.EventServiceAccess, models.EventResultBlocked, "user-9"},
	}
	for i, r := range rows {
		e := &models.AuditLog{
			TenantID:     r.tenant,
			EventType:    r.event,
			EventResult:  r.result,
			ActorID:      r.actor,
			TargetEntity: models.TargetWallet,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(suite.T(), suite.service.Log(suite.ctx, e))
	}
}

func (suite *AuditLogsServiceTestSuite) TestQuery_FiltersAndOrder() {
	suite.seed()

	logs, total, err := suite.service.Query(suite.ctx, &models.AuditLogFilters{TenantID: "t1"})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, total)
	require.Len(suite.T(), logs, 4)
	assert.Equal(suite.T(), models.EventTopup, logs[0].EventType)
	for i := 1; i < len(logs); i++ {
		assert.False(suite.T(), logs[i].CreatedAt.After(logs[i-1].CreatedAt))
	}

	logs, total, err = suite.service.Query(suite.ctx, &models.AuditLogFilters{
		TenantID:     "t1",
		EventTypes:   []string{models.EventDeduction},
		EventResults: []models.EventResult{models.EventResultFailed},
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, total)
	assert.Equal(suite.T(), "user-2", logs[0].ActorID)

	actor := "user-1"
	_, total, err = suite.service.Query(suite.ctx, &models.AuditLogFilters{TenantID: "t1", ActorID: &actor})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, total)
}

func (suite *AuditLogsServiceTestSuite) TestQuery_DateRangeAndPaging() {
	suite.seed()

	start := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	logs, total, err := suite.service.Query(suite.ctx, &models.AuditLogFilters{TenantID: "t1", StartDate: &start, EndDate: &end})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, total)
	assert.Len(suite.T(), logs, 2)

	logs, total, err = suite.service.Query(suite.ctx, &models.AuditLogFilters{TenantID: "t1", Limit: 1, Offset: 1})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, total)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), models.EventDeduction, logs[0].EventType)
}

func (suite *AuditLogsServiceTestSuite) TestQuery_ClampsLimit() {
	filters := &models.AuditLogFilters{TenantID: "t1", Limit: 5000}
	_, _, err := suite.service.Query(suite.ctx, filters)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1000, filters.Limit)

	filters = &models.AuditLogFilters{TenantID: "t1"}
	_, _, err = suite.service.Query(suite.ctx, filters)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 50, filters.Limit)
}

func (suite *AuditLogsServiceTestSuite) TestGetAuditLog_ScopedToTenant() {
	suite.seed()
	logs, _, err := suite.service.Query(suite.ctx, &models.AuditLogFilters{TenantID: "t2"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 1)

	found, err := suite.service.GetAuditLog(suite.ctx, "t2", logs[0].ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), logs[0].ID, found.ID)

	_, err = suite.service.GetAuditLog(suite.ctx, "t1", logs[0].ID)
	assert.ErrorIs(suite.T(), err, repositories.ErrNotFound)
}

func (suite *AuditLogsServiceTestSuite) TestGetSummary() {
	suite.seed()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	summary, err := suite.service.GetSummary(suite.ctx, "t1", start, end)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, summary.TotalLogs)
	assert.Equal(suite.T(), 2, summary.EventBreakdown[models.EventDeduction])
	assert.Equal(suite.T(), 2, summary.ResultBreakdown[string(models.EventResultAllowed)])

	_, err = suite.service.GetSummary(suite.ctx, "t1", end, start)
	assert.ErrorIs(suite.T(), err, ErrInvalidFilters)

	_, err = suite.service.GetSummary(suite.ctx, "t1", start.AddDate(-2, 0, 0), end)
	assert.ErrorIs(suite.T(), err, ErrInvalidFilters)
}

func (suite *AuditLogsServiceTestSuite) TestValidateAuditFilters() {
	start := time.Now()
	end := start.Add(-time.Hour)

	cases := map[string]*models.AuditLogFilters{
		"nil":            nil,
		"no tenant":      {},
		"inverted range": {TenantID: "t1", StartDate: &start, EndDate: &end},
		"negative page":  {TenantID: "t1", Offset: -1},
		"unknown result": {TenantID: "t1", EventResults: []models.EventResult{"MAYBE"}},
	}
	for name, filters := range cases {
		assert.ErrorIs(suite.T(), suite.service.ValidateAuditFilters(filters), ErrInvalidFilters, name)
	}
	assert.NoError(suite.T(), suite.service.ValidateAuditFilters(&models.AuditLogFilters{TenantID: "t1"}))
}
