package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionAuthDenied  AuditAction = "auth.denied"
	AuditActionRBACGranted AuditAction = "rbac.granted"
	AuditActionRBACDenied  AuditAction = "rbac.denied"
)

// Resource types recorded on access decisions.
const (
	ResourceTypeRoute = "route"
)

// AuditLog represents an audit trail entry. Tenant and user are nil when the request failed
// before they were known.
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	TenantID     *string         `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID       *string         `json:"user_id,omitempty" db:"user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty" db:"resource_id"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"` // JSONB
	TraceID      string          `json:"trace_id" db:"trace_id"`
	RequestID    string          `json:"request_id" db:"request_id"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithTenant sets the tenant ID. Empty ids are left unset.
func (a *AuditLog) WithTenant(tenantID string) *AuditLog {
	if tenantID != "" {
		a.TenantID = &tenantID
	}
	return a
}

// WithUser sets the user ID. Empty ids are left unset.
func (a *AuditLog) WithUser(userID string) *AuditLog {
	if userID != "" {
		a.UserID = &userID
	}
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID string) *AuditLog {
	if resourceID != "" {
		a.ResourceID = &resourceID
	}
	return a
}

// WithMetadata sets the metadata
func (a *AuditLog) WithMetadata(metadata interface{}) *AuditLog {
	if data, err := json.Marshal(metadata); err == nil {
		a.Metadata = data
	}
	return a
}

// WithTrace sets the correlation ids
func (a *AuditLog) WithTrace(traceID, requestID string) *AuditLog {
	a.TraceID = traceID
	a.RequestID = requestID
	return a
}

// WithClient sets the caller's address and user agent
func (a *AuditLog) WithClient(ipAddress, userAgent string) *AuditLog {
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
