package audit

import (
	"context"

	"github.com/loveshotsmedia/l3arn-updated/models"
	"github.com/loveshotsmedia/l3arn-updated/repositories"
	"go.uber.org/zap"
)

// LogRepository writes audit events to the structured log instead of a database. It is
// used when DATABASE_URL is not configured.
type LogRepository struct {
	logger *zap.Logger
}

// NewLogRepository creates a log-only audit repository
func NewLogRepository(logger *zap.Logger) repositories.AuditRepository {
	return &LogRepository{logger: logger}
}

// Insert logs the entry at info level
func (r *LogRepository) Insert(_ context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("audit_id", log.ID.String()),
		zap.String("action", string(log.Action)),
		zap.String("resource_type", log.ResourceType),
		zap.String("trace_id", log.TraceID),
		zap.String("request_id", log.RequestID),
		zap.Time("created_at", log.CreatedAt),
	}
	if log.TenantID != nil {
		fields = append(fields, zap.String("tenant_id", *log.TenantID))
	}
	if log.UserID != nil {
		fields = append(fields, zap.String("user_id", *log.UserID))
	}
	if log.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", *log.ResourceID))
	}
	if len(log.Metadata) > 0 {
		fields = append(fields, zap.ByteString("metadata", log.Metadata))
	}

	r.logger.Info("audit.event", fields...)
	return nil
}

// ListByTenant always returns an empty page: nothing is retained.
func (r *LogRepository) ListByTenant(_ context.Context, _ string, _, _ int) ([]*models.AuditLog, error) {
	return []*models.AuditLog{}, nil
}
