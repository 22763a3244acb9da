package postgres

import (
	"context"
	"fmt"

	"github.com/loveshotsmedia/l3arn-updated/models"
	"github.com/loveshotsmedia/l3arn-updated/repositories"
	"go.uber.org/zap"
)

const auditColumns = `id, tenant_id, user_id, action, resource_type, resource_id,
	metadata, trace_id, request_id, ip_address, user_agent, created_at`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     Executor
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db.DB,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	// JSONB rejects an empty string, NULL is fine.
	var metadata interface{}
	if len(log.Metadata) > 0 {
		metadata = []byte(log.Metadata)
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.TenantID,
		log.UserID,
		string(log.Action),
		log.ResourceType,
		log.ResourceID,
		metadata,
		log.TraceID,
		log.RequestID,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// ListByTenant retrieves a tenant's audit logs, newest first, with pagination
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var metadata []byte
		err := rows.Scan(
			&log.ID,
			&log.TenantID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&metadata,
			&log.TraceID,
			&log.RequestID,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Metadata = metadata
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
