package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/loveshotsmedia/l3arn-updated/internal/observability"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/loveshotsmedia/l3arn-updated/models"
	"github.com/loveshotsmedia/l3arn-updated/requestctx"
	"github.com/loveshotsmedia/l3arn-updated/utils"
	"go.uber.org/zap"
)

const defaultAuditPageSize = 50

// AuditLister reads a tenant's audit trail
type AuditLister interface {
	ListTenantLogs(ctx context.Context, tenantID string, limit, offset int) ([]*models.AuditLog, error)
}

// ListAuditLogsQuery holds the pagination parameters of GET /api/v1/audit/logs
type ListAuditLogsQuery struct {
	Limit  int `json:"limit" validate:"gte=1,lte=200"`
	Offset int `json:"offset" validate:"gte=0"`
}

// ListAuditLogsResponse is a page of audit entries
type ListAuditLogsResponse struct {
	Logs   []*models.AuditLog `json:"logs"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// AuditHandler handles audit trail HTTP requests
type AuditHandler struct {
	lister AuditLister
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(lister AuditLister, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{lister: lister, logger: logger}
}

// HandleList handles GET /api/v1/audit/logs
// Only the caller's resolved tenant is ever listed.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx, h.logger)

	rc := requestctx.FromContext(ctx)
	if rc == nil {
		HandleServiceError(w, shared.ErrUnauthenticated, logger)
		return
	}

	query, err := parseListAuditLogsQuery(r)
	if err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	logs, err := h.lister.ListTenantLogs(ctx, rc.TenantID, query.Limit, query.Offset)
	if err != nil {
		HandleServiceError(w, shared.ErrInternal.Wrap(err), logger)
		return
	}

	response := ListAuditLogsResponse{Logs: logs, Limit: query.Limit, Offset: query.Offset}
	if err := utils.WriteOK(w, response); err != nil {
		logger.Error("failed to write audit logs response", zap.Error(err))
	}
}

func parseListAuditLogsQuery(r *http.Request) (ListAuditLogsQuery, error) {
	query := ListAuditLogsQuery{Limit: defaultAuditPageSize}
	values := r.URL.Query()

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return query, fmt.Errorf("limit must be an integer")
		}
		query.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return query, fmt.Errorf("offset must be an integer")
		}
		query.Offset = offset
	}

	if err := utils.ValidateStruct(&query); err != nil {
		return query, err
	}
	return query, nil
}
