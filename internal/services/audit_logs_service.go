package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"verimeter/internal/common"
	"verimeter/internal/config"
	"verimeter/internal/events"
	"verimeter/internal/metrics"
	"verimeter/internal/models"
	"verimeter/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 1000
)

type AuditLogsService interface {
	// Log records one decision. In fallback mode a store failure is
	// diverted to the fallback logger and nil is returned.
	Log(ctx context.Context, entry *models.AuditLog) error

	// Query returns one page, newest first, and the total ignoring pagination
	Query(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, int, error)
	Count(ctx context.Context, filters *models.AuditLogFilters) (int, error)

	GetAuditLog(ctx context.Context, tenantID string, auditLogID uuid.UUID) (*models.AuditLog, error)
	GetSummary(ctx context.Context, tenantID string, startDate, endDate time.Time) (*models.AuditLogSummary, error)

	// Validation methods
	ValidateAuditFilters(filters *models.AuditLogFilters) error
}

type AuditOptions struct {
	// FailureMode is config.AuditModeFallback or config.AuditModeStrict
	FailureMode string
	Fallback    *logrus.Logger
	Publisher   events.AuditPublisher
	Logger      *logrus.Logger
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
	mode          string
	fallback      *logrus.Logger
	publisher     events.AuditPublisher
	logger        *logrus.Logger
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository, opts AuditOptions) AuditLogsService {
	if opts.FailureMode == "" {
		opts.FailureMode = config.AuditModeFallback
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Fallback == nil {
		opts.Fallback = opts.Logger
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewNoopAuditPublisher()
	}
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
		mode:          opts.FailureMode,
		fallback:      opts.Fallback,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
	}
}

// fillDefaults completes an entry from the request context
func fillDefaults(ctx context.Context, entry *models.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ActorID == "" {
		if actorID, ok := common.GetActorIDFromContext(ctx); ok {
			entry.ActorID = actorID
		}
	}
	if entry.ActorRole == "" {
		entry.ActorRole = common.GetActorRoleFromContext(ctx)
	}
	if entry.ActorType == "" {
		entry.ActorType = models.ActorTypeUser
		if common.IsSystemActor(ctx) || entry.ActorID == "" {
			entry.ActorType = models.ActorTypeSystem
		}
	}
	if entry.ActorID == "" {
		entry.ActorID = "system"
	}

	meta := common.GetRequestMeta(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.RequestID == "" {
		entry.RequestID = meta.RequestID
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}
}

func (s *auditLogsService) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.TenantID == "" {
		return errors.New("tenant_id is required")
	}
	if entry.EventType == "" {
		return errors.New("event_type is required")
	}
	if entry.EventResult == "" {
		return errors.New("event_result is required")
	}
	fillDefaults(ctx, entry)

	if err := s.auditLogsRepo.Create(ctx, entry); err != nil {
		metrics.RecordAuditWriteFailure(s.mode)
		if s.mode == config.AuditModeStrict {
			return fmt.Errorf("%w: %w", ErrAuditWrite, err)
		}
		s.fallback.WithFields(logrus.Fields{
			"audit_entry": entry,
			"error":       err.Error(),
		}).Error("audit write failed; entry diverted to fallback log")
		return nil
	}

	if err := s.publisher.Publish(ctx, entry); err != nil {
		metrics.RecordAuditPublishFailure()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": entry.TenantID,
			"log_id":    entry.ID.String(),
		}).Warn("failed to publish audit entry")
	}
	return nil
}

// normalize applies paging defaults in place
func normalize(filters *models.AuditLogFilters) {
	if filters.Limit <= 0 {
		filters.Limit = defaultAuditPageSize
	}
	if filters.Limit > maxAuditPageSize {
		filters.Limit = maxAuditPageSize
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
}

func (s *auditLogsService) Query(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, int, error) {
	if err := s.ValidateAuditFilters(filters); err != nil {
		return nil, 0, err
	}
	normalize(filters)

	logs, err := s.auditLogsRepo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	total, err := s.auditLogsRepo.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return logs, total, nil
}

func (s *auditLogsService) Count(ctx context.Context, filters *models.AuditLogFilters) (int, error) {
	if err := s.ValidateAuditFilters(filters); err != nil {
		return 0, err
	}
	return s.auditLogsRepo.Count(ctx, filters)
}

// GetAuditLog retrieves a single audit log entry
func (s *auditLogsService) GetAuditLog(ctx context.Context, tenantID string, auditLogID uuid.UUID) (*models.AuditLog, error) {
	return s.auditLogsRepo.GetByID(ctx, tenantID, auditLogID)
}

// GetSummary provides aggregated audit statistics
func (s *auditLogsService) GetSummary(ctx context.Context, tenantID string, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidFilters)
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("%w: start_date cannot be after end_date", ErrInvalidFilters)
	}
	// Validate date range (not too large for performance)
	if endDate.Sub(startDate) > 365*24*time.Hour {
		return nil, fmt.Errorf("%w: date range cannot exceed 1 year for summary queries", ErrInvalidFilters)
	}

	return s.auditLogsRepo.GetSummary(ctx, tenantID, startDate, endDate)
}

// ValidateAuditFilters validates audit log filter parameters
func (s *auditLogsService) ValidateAuditFilters(filters *models.AuditLogFilters) error {
	if filters == nil {
		return fmt.Errorf("%w: filters are required", ErrInvalidFilters)
	}
	if filters.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidFilters)
	}
	if filters.StartDate != nil && filters.EndDate != nil && filters.StartDate.After(*filters.EndDate) {
		return fmt.Errorf("%w: start_date cannot be after end_date", ErrInvalidFilters)
	}
	if filters.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", ErrInvalidFilters)
	}
	for _, r := range filters.EventResults {
		switch r {
		case models.EventResultAllowed, models.EventResultBlocked, models.EventResultFailed:
		default:
			return fmt.Errorf("%w: unknown event_result %q", ErrInvalidFilters, r)
		}
	}
	return nil
}
