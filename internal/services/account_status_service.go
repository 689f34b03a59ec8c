package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"verimeter/internal/caching"
	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/sirupsen/logrus"
)

// MaxHierarchyDepth bounds the number of entities on any tenant chain,
// the entity itself included
const MaxHierarchyDepth = 8

type AccountStatusService interface {
	// IsActive reports the effective status: false when the entity or any
	// ancestor is disabled
	IsActive(ctx context.Context, entityID string, entityType models.EntityType) (bool, error)

	// Disable and Enable change the entity's own row only
	Disable(ctx context.Context, entityID string, entityType models.EntityType, disabledBy, reason string) error
	Enable(ctx context.Context, entityID string, entityType models.EntityType, enabledBy string) error

	Provision(ctx context.Context, entity *models.Entity) error
	Get(ctx context.Context, entityID string) (*models.Entity, error)
	List(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]*models.Entity, error)
}

type AccountStatusOptions struct {
	// AllowUnknown treats entities that were never provisioned as active
	AllowUnknown bool
	// CacheRedeleteDelay schedules a second cache delete after a status
	// change, evicting entries written back by readers that loaded the row
	// before the change. Zero means one second; negative disables it.
	CacheRedeleteDelay time.Duration
	Logger             *logrus.Logger
}

const defaultCacheRedeleteDelay = time.Second

type accountStatusService struct {
	entityRepo   repositories.EntityRepository
	cache        caching.CacheService
	audit        AuditLogsService
	allowUnknown bool
	redelete     time.Duration
	logger       *logrus.Logger
}

func NewAccountStatusService(entityRepo repositories.EntityRepository, cache caching.CacheService, audit AuditLogsService, opts AccountStatusOptions) AccountStatusService {
	if cache == nil {
		cache = caching.NewNoopCacheService()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.CacheRedeleteDelay == 0 {
		opts.CacheRedeleteDelay = defaultCacheRedeleteDelay
	}
	return &accountStatusService{
		entityRepo:   entityRepo,
		cache:        cache,
		audit:        audit,
		allowUnknown: opts.AllowUnknown,
		redelete:     opts.CacheRedeleteDelay,
		logger:       opts.Logger,
	}
}

var errUnknownEntity = errors.New("unknown entity")

// load reads through the cache. Cache failures fall back to the store.
func (s *accountStatusService) load(ctx context.Context, entityID string) (*models.Entity, error) {
	cached, err := s.cache.GetEntity(ctx, entityID)
	if err != nil {
		s.logger.WithError(err).WithField("entity_id", entityID).Warn("entity cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	entity, err := s.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetEntity(ctx, entity); err != nil {
		s.logger.WithError(err).WithField("entity_id", entityID).Warn("entity cache write failed")
	}
	return entity, nil
}

// walk visits entityID and then each ancestor until visit returns false or
// the root is reached. An unknown starting entity yields errUnknownEntity;
// every other structural problem yields ErrInvalidHierarchy.
func (s *accountStatusService) walk(ctx context.Context, entityID string, visit func(*models.Entity) bool) error {
	visited := make(map[string]struct{}, MaxHierarchyDepth)
	current := entityID

	for depth := 0; ; depth++ {
		if _, seen := visited[current]; seen {
			return fmt.Errorf("%w: cycle at %s", ErrInvalidHierarchy, current)
		}
		if depth >= MaxHierarchyDepth {
			return fmt.Errorf("%w: %s exceeds maximum depth %d", ErrInvalidHierarchy, entityID, MaxHierarchyDepth)
		}
		visited[current] = struct{}{}

		entity, err := s.load(ctx, current)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("failed to load entity %s: %w", current, err)
			}
			if depth == 0 {
				return errUnknownEntity
			}
			return fmt.Errorf("%w: parent %s of chain %s does not exist", ErrInvalidHierarchy, current, entityID)
		}

		if !visit(entity) || entity.ParentID == nil || *entity.ParentID == "" {
			return nil
		}
		current = *entity.ParentID
	}
}

func (s *accountStatusService) IsActive(ctx context.Context, entityID string, entityType models.EntityType) (bool, error) {
	active := true
	err := s.walk(ctx, entityID, func(e *models.Entity) bool {
		if e.ID == entityID && e.Type != entityType {
			s.logger.WithFields(logrus.Fields{
				"entity_id":     entityID,
				"expected_type": entityType,
				"stored_type":   e.Type,
			}).Debug("entity type differs from requested type")
		}
		if e.IsDisabled() {
			active = false
			return false
		}
		return true
	})

	switch {
	case errors.Is(err, errUnknownEntity):
		return s.allowUnknown, nil
	case err != nil:
		return false, err
	}
	return active, nil
}

// rootTenant returns the top of the entity's chain, used to scope audit entries
func (s *accountStatusService) rootTenant(ctx context.Context, entity *models.Entity) string {
	root := entity.ID
	if entity.ParentID == nil {
		return root
	}
	err := s.walk(ctx, *entity.ParentID, func(e *models.Entity) bool {
		root = e.ID
		return true
	})
	if err != nil {
		return entity.ID
	}
	return root
}

func (s *accountStatusService) getTyped(ctx context.Context, entityID string, entityType models.EntityType) (*models.Entity, error) {
	entity, err := s.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	if entity.Type != entityType {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrEntityNotFound, entityID, entity.Type, entityType)
	}
	return entity, nil
}

func (s *accountStatusService) Disable(ctx context.Context, entityID string, entityType models.EntityType, disabledBy, reason string) error {
	entity, err := s.getTyped(ctx, entityID, entityType)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entity.Status = models.EntityStatusDisabled
	entity.DisabledAt = &now
	entity.DisabledBy = &disabledBy
	entity.DisabledReason = &reason

	if err := s.entityRepo.UpdateStatus(ctx, entity); err != nil {
		return fmt.Errorf("failed to disable entity: %w", err)
	}
	s.invalidate(ctx, entityID)

	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     s.rootTenant(ctx, entity),
		EventType:    models.EventAccountDisabled,
		EventResult:  models.EventResultAllowed,
		ActorID:      disabledBy,
		TargetEntity: models.TargetEntity,
		TargetID:     entityID,
		Message:      fmt.Sprintf("%s %s disabled", entityType, entityID),
		Metadata: models.JSONB{
			"entity_type": string(entityType),
			"reason":      reason,
		},
	})
}

func (s *accountStatusService) Enable(ctx context.Context, entityID string, entityType models.EntityType, enabledBy string) error {
	entity, err := s.getTyped(ctx, entityID, entityType)
	if err != nil {
		return err
	}

	entity.Status = models.EntityStatusActive
	entity.DisabledAt = nil
	entity.DisabledBy = nil
	entity.DisabledReason = nil

	if err := s.entityRepo.UpdateStatus(ctx, entity); err != nil {
		return fmt.Errorf("failed to enable entity: %w", err)
	}
	s.invalidate(ctx, entityID)

	return s.audit.Log(ctx, &models.AuditLog{
		TenantID:     s.rootTenant(ctx, entity),
		EventType:    models.EventAccountEnabled,
		EventResult:  models.EventResultAllowed,
		ActorID:      enabledBy,
		TargetEntity: models.TargetEntity,
		TargetID:     entityID,
		Message:      fmt.Sprintf("%s %s enabled", entityType, entityID),
		Metadata: models.JSONB{
			"entity_type": string(entityType),
		},
	})
}

// invalidate evicts the entity now and once more after the redelete delay.
// A reader that missed the cache before the status change can still write
// the old row back; the second delete bounds how long that copy survives.
func (s *accountStatusService) invalidate(ctx context.Context, entityID string) {
	s.evict(ctx, entityID)
	if s.redelete <= 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	time.AfterFunc(s.redelete, func() {
		ctx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()
		s.evict(ctx, entityID)
	})
}

func (s *accountStatusService) evict(ctx context.Context, entityID string) {
	if err := s.cache.DeleteEntity(ctx, entityID); err != nil {
		s.logger.WithError(err).WithField("entity_id", entityID).Error("failed to invalidate entity cache")
	}
}

// Provision creates an entity. Sub-tenants must hang off an existing,
// well-formed chain that leaves room for one more level.
func (s *accountStatusService) Provision(ctx context.Context, entity *models.Entity) error {
	if entity.ID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrInvalidEntity)
	}
	if !models.ValidEntityType(entity.Type) {
		return fmt.Errorf("%w: unknown entity_type %q", ErrInvalidEntity, entity.Type)
	}
	if entity.Status == "" {
		entity.Status = models.EntityStatusActive
	}
	if entity.Status != models.EntityStatusActive && entity.Status != models.EntityStatusDisabled {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntity, entity.Status)
	}

	switch entity.Type {
	case models.EntityTypeTenant:
		if entity.ParentID != nil {
			return fmt.Errorf("%w: a TENANT cannot have a parent", ErrInvalidEntity)
		}
	case models.EntityTypeSubTenant:
		if entity.ParentID == nil || *entity.ParentID == "" {
			return fmt.Errorf("%w: a SUB_TENANT requires parent_id", ErrInvalidEntity)
		}
		if *entity.ParentID == entity.ID {
			return fmt.Errorf("%w: entity cannot be its own parent", ErrInvalidHierarchy)
		}

		chainLen := 0
		err := s.walk(ctx, *entity.ParentID, func(e *models.Entity) bool {
			chainLen++
			return e.ID != entity.ID
		})
		if errors.Is(err, errUnknownEntity) {
			return fmt.Errorf("%w: parent %s does not exist", ErrInvalidHierarchy, *entity.ParentID)
		}
		if err != nil {
			return err
		}
		if chainLen+1 > MaxHierarchyDepth {
			return fmt.Errorf("%w: depth would exceed %d", ErrInvalidHierarchy, MaxHierarchyDepth)
		}
	}

	if err := s.entityRepo.Create(ctx, entity); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return ErrEntityExists
		}
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

func (s *accountStatusService) Get(ctx context.Context, entityID string) (*models.Entity, error) {
	entity, err := s.entityRepo.GetByID(ctx, entityID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrEntityNotFound
	}
	return entity, err
}

func (s *accountStatusService) List(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]*models.Entity, error) {
	return s.entityRepo.List(ctx, entityType, limit, offset)
}
