// Package memory holds in-process implementations of the repositories, used
// by tests and by STORE=memory local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"verimeter/internal/models"
	"verimeter/internal/repositories"
)

type EntityStore struct {
	mu       sync.RWMutex
	entities map[string]*models.Entity
}

func NewEntityRepo() *EntityStore {
	return &EntityStore{entities: make(map[string]*models.Entity)}
}

var _ repositories.EntityRepository = (*EntityStore)(nil)

func (s *EntityStore) Create(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[entity.ID]; exists {
		return repositories.ErrAlreadyExists
	}
	now := time.Now().UTC()
	stored := *entity
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entities[entity.ID] = &stored
	entity.CreatedAt = now
	entity.UpdatedAt = now
	return nil
}

func (s *EntityStore) GetByID(_ context.Context, id string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entities[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (s *EntityStore) UpdateStatus(_ context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[entity.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = entity.Status
	stored.DisabledReason = entity.DisabledReason
	stored.DisabledAt = entity.DisabledAt
	stored.DisabledBy = entity.DisabledBy
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *EntityStore) List(_ context.Context, entityType *models.EntityType, limit, offset int) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Entity
	for _, e := range s.entities {
		if entityType != nil && e.Type != *entityType {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
