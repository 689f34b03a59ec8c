package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"verimeter/internal/models"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func stringPtr(s string) *string {
	return &s
}

var entityRowColumns = []string{"entity_id", "entity_type", "status", "parent_id", "disabled_reason", "disabled_at", "disabled_by", "created_at", "updated_at"}

type EntityRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    EntityRepository
	context context.Context
}

func (suite *EntityRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewEntityRepo(mock)
	suite.context = context.Background()
}

func (suite *EntityRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestEntityRepoTestSuite(t *testing.T) {
	suite.Run(t, new(EntityRepoTestSuite))
}

func (suite *EntityRepoTestSuite) TestCreate_Success() {
	entity := &models.Entity{
		ID:       "sub-1",
		Type:     models.EntityTypeSubTenant,
		Status:   models.EntityStatusActive,
		ParentID: stringPtr("tenant-1"),
	}

	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entities (entity_id, entity_type, status, parent_id, created_at, updated_at)`)).
		WithArgs(entity.ID, entity.Type, entity.Status, entity.ParentID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, entity)
	assert.NoError(suite.T(), err)
}

func (suite *EntityRepoTestSuite) TestCreate_Duplicate() {
	entity := &models.Entity{ID: "tenant-1", Type: models.EntityTypeTenant, Status: models.EntityStatusActive}

	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO entities`)).
		WithArgs(entity.ID, entity.Type, entity.Status, entity.ParentID).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := suite.repo.Create(suite.context, entity)
	assert.ErrorIs(suite.T(), err, ErrAlreadyExists)
}

func (suite *EntityRepoTestSuite) TestGetByID_Success() {
	now := time.Now()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM entities`)).
		WithArgs("sub-1").
		WillReturnRows(pgxmock.NewRows(entityRowColumns).
			AddRow("sub-1", models.EntityTypeSubTenant, models.EntityStatusDisabled, stringPtr("tenant-1"),
				stringPtr("fraud"), &now, stringPtr("admin-1"), now, now))

	entity, err := suite.repo.GetByID(suite.context, "sub-1")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "sub-1", entity.ID)
	assert.Equal(suite.T(), models.EntityTypeSubTenant, entity.Type)
	assert.True(suite.T(), entity.IsDisabled())
	assert.Equal(suite.T(), "tenant-1", *entity.ParentID)
	assert.Equal(suite.T(), "fraud", *entity.DisabledReason)
}

func (suite *EntityRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM entities`)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	entity, err := suite.repo.GetByID(suite.context, "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	assert.Nil(suite.T(), entity)
}

func (suite *EntityRepoTestSuite) TestUpdateStatus_NotFound() {
	entity := &models.Entity{ID: "ghost", Status: models.EntityStatusDisabled}

	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE entities`)).
		WithArgs(entity.Status, entity.DisabledReason, entity.DisabledAt, entity.DisabledBy, entity.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.UpdateStatus(suite.context, entity)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *EntityRepoTestSuite) TestUpdateStatus_DatabaseError() {
	entity := &models.Entity{ID: "tenant-1", Status: models.EntityStatusActive}

	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE entities`)).
		WithArgs(entity.Status, entity.DisabledReason, entity.DisabledAt, entity.DisabledBy, entity.ID).
		WillReturnError(errors.New("database connection failed"))

	err := suite.repo.UpdateStatus(suite.context, entity)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "database connection failed")
}

func (suite *EntityRepoTestSuite) TestList_FilterByType() {
	now := time.Now()
	entityType := models.EntityTypeTenant

	suite.mock.ExpectQuery(regexp.QuoteMeta(`WHERE ($1::text IS NULL OR entity_type = $1)`)).
		WithArgs(stringPtr("TENANT"), 10, 0).
		WillReturnRows(pgxmock.NewRows(entityRowColumns).
			AddRow("tenant-1", models.EntityTypeTenant, models.EntityStatusActive, (*string)(nil),
				(*string)(nil), (*time.Time)(nil), (*string)(nil), now, now).
			AddRow("tenant-2", models.EntityTypeTenant, models.EntityStatusActive, (*string)(nil),
				(*string)(nil), (*time.Time)(nil), (*string)(nil), now, now))

	entities, err := suite.repo.List(suite.context, &entityType, 10, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), entities, 2)
	assert.Nil(suite.T(), entities[0].ParentID)
}
