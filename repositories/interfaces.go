package repositories

import (
	"context"

	"github.com/loveshotsmedia/l3arn-updated/models"
)

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByTenant retrieves a tenant's audit logs, newest first, with pagination
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	AuditLogs AuditRepository
}
