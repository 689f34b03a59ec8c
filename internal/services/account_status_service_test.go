package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"verimeter/internal/caching"
	"verimeter/internal/models"
	"verimeter/internal/repositories/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AccountStatusServiceTestSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func (suite *AccountStatusServiceTestSuite) SetupTest() {
	suite.f = newFallbackFixture()
	suite.ctx = userCtx()
}

func TestAccountStatusServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccountStatusServiceTestSuite))
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_ActiveRoot() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)

	active, err := suite.f.status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_OwnStatusDisabled() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusDisabled)

	active, err := suite.f.status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_CascadesFromParent() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	suite.f.subTenant(suite.ctx, "s1", "t1", models.EntityStatusActive)
	suite.f.subTenant(suite.ctx, "s2", "s1", models.EntityStatusActive)

	require.NoError(suite.T(), suite.f.status.Disable(suite.ctx, "t1", models.EntityTypeTenant, "admin", "fraud"))

	for _, id := range []string{"s1", "s2"} {
		active, err := suite.f.status.IsActive(suite.ctx, id, models.EntityTypeSubTenant)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), active, id)
	}

	// descendants keep their own stored status
	s1, err := suite.f.status.Get(suite.ctx, "s1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.EntityStatusActive, s1.Status)

	require.NoError(suite.T(), suite.f.status.Enable(suite.ctx, "t1", models.EntityTypeTenant, "admin"))
	active, err := suite.f.status.IsActive(suite.ctx, "s2", models.EntityTypeSubTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_DisabledChildDoesNotAffectParent() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	suite.f.subTenant(suite.ctx, "s1", "t1", models.EntityStatusActive)

	require.NoError(suite.T(), suite.f.status.Disable(suite.ctx, "s1", models.EntityTypeSubTenant, "admin", "overdue"))

	active, err := suite.f.status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)

	active, err = suite.f.status.IsActive(suite.ctx, "s1", models.EntityTypeSubTenant)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_UnknownEntityFailsClosed() {
	active, err := suite.f.status.IsActive(suite.ctx, "ghost", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_UnknownEntityAllowedByPolicy() {
	logger := logrus.New()
	svc := NewAccountStatusService(memory.NewEntityRepo(), nil, suite.f.audit, AccountStatusOptions{AllowUnknown: true, Logger: logger})

	active, err := svc.IsActive(suite.ctx, "ghost", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_CycleFailsClosed() {
	a, b := "a", "b"
	// bypass Provision to plant a corrupt chain
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: a, Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &b}))
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: b, Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &a}))

	active, err := suite.f.status.IsActive(suite.ctx, a, models.EntityTypeSubTenant)
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_MissingAncestorIsIntegrityError() {
	parent := "gone"
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: "orphan", Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &parent}))

	active, err := suite.f.status.IsActive(suite.ctx, "orphan", models.EntityTypeSubTenant)
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_DepthLimit() {
	// a chain of MaxHierarchyDepth entities is allowed
	suite.f.tenant(suite.ctx, "e0", models.EntityStatusActive)
	prev := "e0"
	for i := 1; i < MaxHierarchyDepth; i++ {
		id := "e" + string(rune('0'+i))
		suite.f.subTenant(suite.ctx, id, prev, models.EntityStatusActive)
		prev = id
	}
	active, err := suite.f.status.IsActive(suite.ctx, prev, models.EntityTypeSubTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)

	// one more level is refused at provisioning
	err = suite.f.status.Provision(suite.ctx, &models.Entity{ID: "too-deep", Type: models.EntityTypeSubTenant, ParentID: &prev})
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)

	// and rejected at read time when planted directly
	require.NoError(suite.T(), suite.f.entities.Create(suite.ctx, &models.Entity{ID: "planted", Type: models.EntityTypeSubTenant, Status: models.EntityStatusActive, ParentID: &prev}))
	active, err = suite.f.status.IsActive(suite.ctx, "planted", models.EntityTypeSubTenant)
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)
	assert.False(suite.T(), active)
}

func (suite *AccountStatusServiceTestSuite) TestDisable_WritesAuditEntry() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	suite.f.subTenant(suite.ctx, "s1", "t1", models.EntityStatusActive)

	require.NoError(suite.T(), suite.f.status.Disable(suite.ctx, "s1", models.EntityTypeSubTenant, "admin-7", "overdue"))

	logs := suite.f.logsFor(models.EventAccountDisabled)
	require.Len(suite.T(), logs, 1)
	entry := logs[0]
	assert.Equal(suite.T(), "t1", entry.TenantID)
	assert.Equal(suite.T(), models.EventResultAllowed, entry.EventResult)
	assert.Equal(suite.T(), "admin-7", entry.ActorID)
	assert.Equal(suite.T(), models.TargetEntity, entry.TargetEntity)
	assert.Equal(suite.T(), "s1", entry.TargetID)
	assert.Equal(suite.T(), "overdue", entry.Metadata["reason"])

	stored, err := suite.f.status.Get(suite.ctx, "s1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.EntityStatusDisabled, stored.Status)
	require.NotNil(suite.T(), stored.DisabledBy)
	assert.Equal(suite.T(), "admin-7", *stored.DisabledBy)
	assert.NotNil(suite.T(), stored.DisabledAt)
}

func (suite *AccountStatusServiceTestSuite) TestEnable_ClearsDisableFields() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)
	require.NoError(suite.T(), suite.f.status.Disable(suite.ctx, "t1", models.EntityTypeTenant, "admin", "fraud"))
	require.NoError(suite.T(), suite.f.status.Enable(suite.ctx, "t1", models.EntityTypeTenant, "admin"))

	stored, err := suite.f.status.Get(suite.ctx, "t1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.EntityStatusActive, stored.Status)
	assert.Nil(suite.T(), stored.DisabledAt)
	assert.Nil(suite.T(), stored.DisabledReason)
	assert.Len(suite.T(), suite.f.logsFor(models.EventAccountEnabled), 1)
}

func (suite *AccountStatusServiceTestSuite) TestDisable_TypeMismatch() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)

	err := suite.f.status.Disable(suite.ctx, "t1", models.EntityTypeSubTenant, "admin", "x")
	assert.ErrorIs(suite.T(), err, ErrEntityNotFound)
	assert.Empty(suite.T(), suite.f.logsFor(models.EventAccountDisabled))
}

func (suite *AccountStatusServiceTestSuite) TestDisable_Unknown() {
	err := suite.f.status.Disable(suite.ctx, "ghost", models.EntityTypeTenant, "admin", "x")
	assert.ErrorIs(suite.T(), err, ErrEntityNotFound)
}

func (suite *AccountStatusServiceTestSuite) TestProvision_Validation() {
	parent := "t1"
	cases := map[string]*models.Entity{
		"missing id":         {Type: models.EntityTypeTenant},
		"bad type":           {ID: "x", Type: "ORG"},
		"tenant with parent": {ID: "x", Type: models.EntityTypeTenant, ParentID: &parent},
		"sub without parent": {ID: "x", Type: models.EntityTypeSubTenant},
		"unknown status":     {ID: "x", Type: models.EntityTypeTenant, Status: "PAUSED"},
	}
	for name, entity := range cases {
		err := suite.f.status.Provision(suite.ctx, entity)
		assert.ErrorIs(suite.T(), err, ErrInvalidEntity, name)
	}

	err := suite.f.status.Provision(suite.ctx, &models.Entity{ID: "s1", Type: models.EntityTypeSubTenant, ParentID: &parent})
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)

	self := "s1"
	err = suite.f.status.Provision(suite.ctx, &models.Entity{ID: "s1", Type: models.EntityTypeSubTenant, ParentID: &self})
	assert.ErrorIs(suite.T(), err, ErrInvalidHierarchy)
}

func (suite *AccountStatusServiceTestSuite) TestProvision_Duplicate() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)

	err := suite.f.status.Provision(suite.ctx, &models.Entity{ID: "t1", Type: models.EntityTypeTenant})
	assert.ErrorIs(suite.T(), err, ErrEntityExists)
}

func (suite *AccountStatusServiceTestSuite) TestIsActive_IgnoresTypeMismatch() {
	suite.f.tenant(suite.ctx, "t1", models.EntityStatusActive)

	active, err := suite.f.status.IsActive(suite.ctx, "t1", models.EntityTypeSubTenant)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), active)
}

// entityMapCache keeps entities in memory and delegates prices to the noop cache
type entityMapCache struct {
	caching.CacheService
	mu       sync.Mutex
	entities map[string]models.Entity
}

func newEntityMapCache() *entityMapCache {
	return &entityMapCache{CacheService: caching.NewNoopCacheService(), entities: make(map[string]models.Entity)}
}

func (c *entityMapCache) GetEntity(_ context.Context, entityID string) (*models.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[entityID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *entityMapCache) SetEntity(_ context.Context, entity *models.Entity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[entity.ID] = *entity
	return nil
}

func (c *entityMapCache) DeleteEntity(_ context.Context, entityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entities, entityID)
	return nil
}

func (suite *AccountStatusServiceTestSuite) TestDisable_EvictsLateCacheWriteBack() {
	cache := newEntityMapCache()
	status := NewAccountStatusService(suite.f.entities, cache, suite.f.audit, AccountStatusOptions{
		CacheRedeleteDelay: 20 * time.Millisecond,
	})
	require.NoError(suite.T(), status.Provision(suite.ctx, &models.Entity{ID: "t1", Type: models.EntityTypeTenant}))

	active, err := status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	require.True(suite.T(), active)
	stale, _ := cache.GetEntity(suite.ctx, "t1")
	require.NotNil(suite.T(), stale)

	require.NoError(suite.T(), status.Disable(suite.ctx, "t1", models.EntityTypeTenant, "admin", "fraud"))

	// a reader that loaded the row before the disable finishes late
	require.NoError(suite.T(), cache.SetEntity(suite.ctx, stale))

	assert.Eventually(suite.T(), func() bool {
		active, err := status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
		return err == nil && !active
	}, time.Second, 10*time.Millisecond)
}

func (suite *AccountStatusServiceTestSuite) TestDisable_RedeleteCanBeTurnedOff() {
	cache := newEntityMapCache()
	status := NewAccountStatusService(suite.f.entities, cache, suite.f.audit, AccountStatusOptions{
		CacheRedeleteDelay: -1,
	})
	require.NoError(suite.T(), status.Provision(suite.ctx, &models.Entity{ID: "t1", Type: models.EntityTypeTenant}))
	_, err := status.IsActive(suite.ctx, "t1", models.EntityTypeTenant)
	require.NoError(suite.T(), err)
	stale, _ := cache.GetEntity(suite.ctx, "t1")
	require.NotNil(suite.T(), stale)

	require.NoError(suite.T(), status.Disable(suite.ctx, "t1", models.EntityTypeTenant, "admin", "fraud"))
	cached, _ := cache.GetEntity(suite.ctx, "t1")
	assert.Nil(suite.T(), cached)

	require.NoError(suite.T(), cache.SetEntity(suite.ctx, stale))
	time.Sleep(50 * time.Millisecond)
	cached, _ = cache.GetEntity(suite.ctx, "t1")
	require.NotNil(suite.T(), cached)
	assert.False(suite.T(), cached.IsDisabled())
}
