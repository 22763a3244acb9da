package handlers

import (
	"net/http"

	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/loveshotsmedia/l3arn-updated/requestctx"
	"github.com/loveshotsmedia/l3arn-updated/utils"
	"go.uber.org/zap"
)

// MeResponse describes the authenticated caller in the tenant the request resolved to
type MeResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	TraceID  string `json:"trace_id,omitempty"`
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

// HandleMe handles GET /api/v1/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	rc := requestctx.FromContext(r.Context())
	if rc == nil {
		HandleServiceError(w, shared.ErrUnauthenticated, h.logger)
		return
	}

	response := MeResponse{
		UserID:   rc.UserID,
		TenantID: rc.TenantID,
		Role:     rc.Role.String(),
		TraceID:  rc.TraceID,
	}
	if rc.Identity != nil {
		response.Email = rc.Identity.Email
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write me response", zap.Error(err))
	}
}
