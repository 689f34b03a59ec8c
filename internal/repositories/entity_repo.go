package repositories

import (
	"context"

	"verimeter/internal/models"
)

// EntityRepository stores tenants and sub-tenants
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	UpdateStatus(ctx context.Context, entity *models.Entity) error
	List(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]*models.Entity, error)
}

type entityRepo struct {
	db DB
}

func NewEntityRepo(db DB) EntityRepository {
	return &entityRepo{db: db}
}

const entityColumns = `entity_id, entity_type, status, parent_id, disabled_reason, disabled_at, disabled_by, created_at, updated_at`

func (r *entityRepo) Create(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (entity_id, entity_type, status, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, entity.ID, entity.Type, entity.Status, entity.ParentID)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *entityRepo) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	entity := &models.Entity{}
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE entity_id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&entity.ID,
		&entity.Type,
		&entity.Status,
		&entity.ParentID,
		&entity.DisabledReason,
		&entity.DisabledAt,
		&entity.DisabledBy,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return entity, nil
}

// UpdateStatus writes the entity's own status and bookkeeping fields only
func (r *entityRepo) UpdateStatus(ctx context.Context, entity *models.Entity) error {
	query := `
		UPDATE entities
		SET status = $1, disabled_reason = $2, disabled_at = $3, disabled_by = $4, updated_at = NOW()
		WHERE entity_id = $5
	`
	tag, err := r.db.Exec(ctx, query, entity.Status, entity.DisabledReason, entity.DisabledAt, entity.DisabledBy, entity.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entityRepo) List(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]*models.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE ($1::text IS NULL OR entity_type = $1)
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	var typeArg *string
	if entityType != nil {
		t := string(*entityType)
		typeArg = &t
	}
	rows, err := r.db.Query(ctx, query, typeArg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity := &models.Entity{}
		if err := rows.Scan(
			&entity.ID,
			&entity.Type,
			&entity.Status,
			&entity.ParentID,
			&entity.DisabledReason,
			&entity.DisabledAt,
			&entity.DisabledBy,
			&entity.CreatedAt,
			&entity.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
