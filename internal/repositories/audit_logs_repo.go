package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"verimeter/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AuditLogsRepository interface {
	// Create a new audit log entry. Entries are never updated or deleted.
	Create(ctx context.Context, auditLog *models.AuditLog) error

	// Get audit log by ID and tenant
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.AuditLog, error)

	// List audit logs with filtering options, newest first
	List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)

	// Count matching audit logs ignoring pagination
	Count(ctx context.Context, filters *models.AuditLogFilters) (int, error)

	// Get audit summary for statistics
	GetSummary(ctx context.Context, tenantID string, startDate, endDate time.Time) (*models.AuditLogSummary, error)

	// Tenants that wrote at least one entry in the window
	ListTenants(ctx context.Context, startDate, endDate time.Time) ([]string, error)
}

type auditLogsRepo struct {
	db DB
}

func NewAuditLogsRepo(db DB) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

const auditColumns = `id, tenant_id, event_type, event_result, actor_id, actor_role, actor_type, target_entity, target_id, reason_code, message, metadata, ip_address, user_agent, request_id, created_at`

func (r *auditLogsRepo) Create(ctx context.Context, auditLog *models.AuditLog) error {
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	var err error
	if auditLog.Metadata != nil {
		metadata, err = json.Marshal(auditLog.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.Exec(ctx, query,
		auditLog.ID,
		auditLog.TenantID,
		auditLog.EventType,
		auditLog.EventResult,
		auditLog.ActorID,
		auditLog.ActorRole,
		auditLog.ActorType,
		auditLog.TargetEntity,
		auditLog.TargetID,
		auditLog.ReasonCode,
		auditLog.Message,
		metadata,
		auditLog.IPAddress,
		auditLog.UserAgent,
		auditLog.RequestID,
		auditLog.CreatedAt,
	)
	return err
}

func scanAuditLog(row pgx.Row) (*models.AuditLog, error) {
	auditLog := &models.AuditLog{}
	var metadata []byte
	err := row.Scan(
		&auditLog.ID,
		&auditLog.TenantID,
		&auditLog.EventType,
		&auditLog.EventResult,
		&auditLog.ActorID,
		&auditLog.ActorRole,
		&auditLog.ActorType,
		&auditLog.TargetEntity,
		&auditLog.TargetID,
		&auditLog.ReasonCode,
		&auditLog.Message,
		&metadata,
		&auditLog.IPAddress,
		&auditLog.UserAgent,
		&auditLog.RequestID,
		&auditLog.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &auditLog.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return auditLog, nil
}

func (r *auditLogsRepo) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE tenant_id = $1 AND id = $2`
	auditLog, err := scanAuditLog(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return auditLog, nil
}

// auditWhere builds the AND-combined WHERE clause shared by List and Count
func auditWhere(filters *models.AuditLogFilters) (string, []interface{}) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{filters.TenantID}
	argIdx := 1

	if len(filters.EventTypes) > 0 {
		argIdx++
		clauses = append(clauses, fmt.Sprintf("event_type = ANY($%d)", argIdx))
		args = append(args, filters.EventTypes)
	}

	if len(filters.EventResults) > 0 {
		results := make([]string, len(filters.EventResults))
		for i, res := range filters.EventResults {
			results[i] = string(res)
		}
		argIdx++
		clauses = append(clauses, fmt.Sprintf("event_result = ANY($%d)", argIdx))
		args = append(args, results)
	}

	if filters.ActorID != nil {
		argIdx++
		clauses = append(clauses, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, *filters.ActorID)
	}

	if filters.TargetEntity != nil {
		argIdx++
		clauses = append(clauses, fmt.Sprintf("target_entity = $%d", argIdx))
		args = append(args, *filters.TargetEntity)
	}

	if filters.StartDate != nil {
		argIdx++
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.StartDate)
	}

	if filters.EndDate != nil {
		argIdx++
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filters.EndDate)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *auditLogsRepo) List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}

	where, args := auditWhere(filters)
	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where + ` ORDER BY created_at DESC, id`

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auditLogs []*models.AuditLog
	for rows.Next() {
		auditLog, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		auditLogs = append(auditLogs, auditLog)
	}
	return auditLogs, rows.Err()
}

func (r *auditLogsRepo) Count(ctx context.Context, filters *models.AuditLogFilters) (int, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}
	where, args := auditWhere(filters)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *auditLogsRepo) breakdown(ctx context.Context, column, tenantID string, startDate, endDate time.Time) (map[string]int, error) {
	query := `
		SELECT ` + column + `, COUNT(*)
		FROM audit_logs
		WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3 AND ` + column + ` IS NOT NULL
		GROUP BY ` + column

	rows, err := r.db.Query(ctx, query, tenantID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (r *auditLogsRepo) GetSummary(ctx context.Context, tenantID string, startDate, endDate time.Time) (*models.AuditLogSummary, error) {
	var totalLogs int
	query := `SELECT COUNT(*) FROM audit_logs WHERE tenant_id = $1 AND created_at BETWEEN $2 AND $3`
	if err := r.db.QueryRow(ctx, query, tenantID, startDate, endDate).Scan(&totalLogs); err != nil {
		return nil, err
	}

	summary := &models.AuditLogSummary{
		TenantID:    tenantID,
		TotalLogs:   totalLogs,
		PeriodStart: startDate,
		PeriodEnd:   endDate,
	}

	var err error
	if summary.EventBreakdown, err = r.breakdown(ctx, "event_type", tenantID, startDate, endDate); err != nil {
		return nil, err
	}
	if summary.ResultBreakdown, err = r.breakdown(ctx, "event_result", tenantID, startDate, endDate); err != nil {
		return nil, err
	}
	if summary.ReasonBreakdown, err = r.breakdown(ctx, "reason_code", tenantID, startDate, endDate); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *auditLogsRepo) ListTenants(ctx context.Context, startDate, endDate time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT tenant_id
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY tenant_id
	`
	rows, err := r.db.Query(ctx, query, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenantID)
	}
	return tenants, rows.Err()
}
