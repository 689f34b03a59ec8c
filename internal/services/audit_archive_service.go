package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verimeter/internal/metrics"
	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/sirupsen/logrus"
)

const archivePageSize = 1000

// AuditArchiveService copies audit entries to object storage, one JSON
// lines object per tenant per day. The database copy is left in place.
type AuditArchiveService interface {
	// ArchiveDay exports entries created on the UTC day containing day.
	// It returns the number of entries written.
	ArchiveDay(ctx context.Context, day time.Time) (int, error)
}

type auditArchiveService struct {
	auditLogsRepo repositories.AuditLogsRepository
	store         ArchiveStore
	logger        *logrus.Logger
}

func NewAuditArchiveService(auditLogsRepo repositories.AuditLogsRepository, store ArchiveStore, logger *logrus.Logger) AuditArchiveService {
	return &auditArchiveService{
		auditLogsRepo: auditLogsRepo,
		store:         store,
		logger:        logger,
	}
}

// ArchiveObjectName is the object key for one tenant's day
func ArchiveObjectName(tenantID string, day time.Time) string {
	return fmt.Sprintf("audit/%s/%s.jsonl", tenantID, day.UTC().Format("2006/01/02"))
}

func (s *auditArchiveService) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	tenants, err := s.auditLogsRepo.ListTenants(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to list audited tenants: %w", err)
	}

	total := 0
	for _, tenantID := range tenants {
		n, err := s.archiveTenant(ctx, tenantID, start, end)
		if err != nil {
			return total, fmt.Errorf("failed to archive tenant %s: %w", tenantID, err)
		}
		total += n
	}

	metrics.RecordAuditArchived(total)
	s.logger.WithFields(logrus.Fields{
		"day":     start.Format("2006-01-02"),
		"tenants": len(tenants),
		"entries": total,
	}).Info("audit archive written")
	return total, nil
}

func (s *auditArchiveService) archiveTenant(ctx context.Context, tenantID string, start, end time.Time) (int, error) {
	last := end.Add(-time.Nanosecond)
	filters := &models.AuditLogFilters{
		TenantID:  tenantID,
		StartDate: &start,
		EndDate:   &last,
		Limit:     archivePageSize,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for {
		page, err := s.auditLogsRepo.List(ctx, filters)
		if err != nil {
			return 0, err
		}
		for _, entry := range page {
			if err := enc.Encode(entry); err != nil {
				return 0, err
			}
		}
		count += len(page)
		if len(page) < archivePageSize {
			break
		}
		filters.Offset += archivePageSize
	}
	if count == 0 {
		return 0, nil
	}

	name := ArchiveObjectName(tenantID, start)
	if err := s.store.PutObject(ctx, name, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/x-ndjson"); err != nil {
		return 0, err
	}
	return count, nil
}
