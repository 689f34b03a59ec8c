package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/google/uuid"
)

// AuditStore is append-only
type AuditStore struct {
	mu   sync.RWMutex
	logs []*models.AuditLog

	// FailWith, when set, makes Create return it. Used to exercise audit
	// failure handling.
	FailWith error
}

func NewAuditLogsRepo() *AuditStore {
	return &AuditStore{}
}

var _ repositories.AuditLogsRepository = (*AuditStore)(nil)

func (s *AuditStore) Create(_ context.Context, auditLog *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now().UTC()
	}
	stored := *auditLog
	s.logs = append(s.logs, &stored)
	return nil
}

func (s *AuditStore) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.logs {
		if l.ID == id && l.TenantID == tenantID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func matches(l *models.AuditLog, f *models.AuditLogFilters) bool {
	if l.TenantID != f.TenantID {
		return false
	}
	if len(f.EventTypes) > 0 && !contains(f.EventTypes, l.EventType) {
		return false
	}
	if len(f.EventResults) > 0 && !contains(f.EventResults, l.EventResult) {
		return false
	}
	if f.ActorID != nil && l.ActorID != *f.ActorID {
		return false
	}
	if f.TargetEntity != nil && l.TargetEntity != *f.TargetEntity {
		return false
	}
	if f.StartDate != nil && l.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && l.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func (s *AuditStore) filter(f *models.AuditLogFilters) []*models.AuditLog {
	if f == nil {
		f = &models.AuditLogFilters{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuditLog
	for _, l := range s.logs {
		if matches(l, f) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out
}

func (s *AuditStore) List(_ context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	out := s.filter(filters)
	// Insertion order breaks ties so equal timestamps list the newest write first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filters == nil {
		return out, nil
	}
	return paginate(out, filters.Limit, filters.Offset), nil
}

func (s *AuditStore) Count(_ context.Context, filters *models.AuditLogFilters) (int, error) {
	return len(s.filter(filters)), nil
}

func (s *AuditStore) GetSummary(_ context.Context, tenantID string, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	logs := s.filter(&models.AuditLogFilters{TenantID: tenantID, StartDate: &startDate, EndDate: &endDate})

	summary := &models.AuditLogSummary{
		TenantID:        tenantID,
		TotalLogs:       len(logs),
		EventBreakdown:  make(map[string]int),
		ResultBreakdown: make(map[string]int),
		ReasonBreakdown: make(map[string]int),
		PeriodStart:     startDate,
		PeriodEnd:       endDate,
	}
	for _, l := range logs {
		summary.EventBreakdown[l.EventType]++
		summary.ResultBreakdown[string(l.EventResult)]++
		if l.ReasonCode != nil {
			summary.ReasonBreakdown[*l.ReasonCode]++
		}
	}
	return summary, nil
}

func (s *AuditStore) ListTenants(_ context.Context, startDate, endDate time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var tenants []string
	for _, l := range s.logs {
		if l.CreatedAt.Before(startDate) || !l.CreatedAt.Before(endDate) {
			continue
		}
		if _, ok := seen[l.TenantID]; ok {
			continue
		}
		seen[l.TenantID] = struct{}{}
		tenants = append(tenants, l.TenantID)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// All returns every stored entry in write order
func (s *AuditStore) All() []*models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AuditLog, len(s.logs))
	for i, l := range s.logs {
		cp := *l
		out[i] = &cp
	}
	return out
}
