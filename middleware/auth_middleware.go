package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/loveshotsmedia/l3arn-updated/handlers"
	"github.com/loveshotsmedia/l3arn-updated/internal/observability"
	"github.com/loveshotsmedia/l3arn-updated/internal/rbac"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/loveshotsmedia/l3arn-updated/requestctx"
	"github.com/loveshotsmedia/l3arn-updated/services/audit"
	"go.uber.org/zap"
)

// ContextBuilder turns a bearer token into the caller's RequestContext
type ContextBuilder interface {
	Build(ctx context.Context, token, tenantHint string, trace requestctx.Trace) (*requestctx.RequestContext, error)
}

// AuditRecorder receives access decisions. Implementations must not block.
type AuditRecorder interface {
	LogAuthDenied(meta audit.RequestMeta, userID, reason string) error
	LogRoleDecision(meta audit.RequestMeta, tenantID, userID string, role, required rbac.Role, granted bool) error
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	builder ContextBuilder
	audit   AuditRecorder
	logger  *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. recorder may be nil.
func NewAuthMiddleware(builder ContextBuilder, recorder AuditRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		builder: builder,
		audit:   recorder,
		logger:  logger,
	}
}

// RequireAuth verifies the bearer token, resolves the caller's tenant and stores the
// resulting RequestContext on the request. The tenant is chosen by the X-Tenant-Id header
// when present.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.FromContext(ctx, m.logger)

		token := extractBearerToken(r)
		if token == "" {
			err := shared.ErrUnauthenticated.Wrap(errors.New("missing bearer token"))
			m.recordDenied(logger, r, err)
			handlers.HandleServiceError(w, err, logger)
			return
		}

		rc, err := m.builder.Build(ctx, token, strings.TrimSpace(r.Header.Get(TenantIDHeader)), requestctx.Trace{
			TraceID:   shared.TraceID(ctx),
			RequestID: shared.RequestID(ctx),
		})
		if err != nil {
			m.recordDenied(logger, r, err)
			handlers.HandleServiceError(w, err, logger)
			return
		}

		logger.Debug("authentication successful",
			zap.String("user_id", rc.UserID),
			zap.String("tenant_id", rc.TenantID),
			zap.String("role", rc.Role.String()))

		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestContext(ctx, rc)))
	})
}

// RequireRole rejects callers whose tenant role ranks below required. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireRole(required rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := observability.FromContext(ctx, m.logger)

			rc := requestctx.FromContext(ctx)
			if rc == nil {
				logger.Error("request context not found, RequireRole used without RequireAuth")
				handlers.HandleServiceError(w, shared.ErrUnauthenticated, logger)
				return
			}

			if err := rbac.Check(rc.Role.String(), required); err != nil {
				event := "rbac.insufficient_role"
				if errors.Is(err, shared.ErrUnknownRole) {
					event = "rbac.unknown_role"
				}
				logger.Warn(event,
					zap.String("user_id", rc.UserID),
					zap.String("tenant_id", rc.TenantID),
					zap.String("role", rc.Role.String()),
					zap.String("required_role", required.String()))
				m.recordRole(logger, r, rc, required, false)
				handlers.HandleServiceError(w, err, logger)
				return
			}

			logger.Debug("rbac.authorized",
				zap.String("user_id", rc.UserID),
				zap.String("role", rc.Role.String()),
				zap.String("required_role", required.String()))
			m.recordRole(logger, r, rc, required, true)

			next.ServeHTTP(w, r)
		})
	}
}

// recordDenied audits a request rejected before a RequestContext existed, so no user is attached.
func (m *AuthMiddleware) recordDenied(logger *zap.Logger, r *http.Request, err error) {
	if m.audit == nil {
		return
	}
	reason := string(shared.GetErrorKind(err))
	if reason == "" {
		reason = "missing_token"
	}
	if auditErr := m.audit.LogAuthDenied(requestMeta(r), "", reason); auditErr != nil {
		logger.Warn("audit event dropped", zap.Error(auditErr))
	}
}

func (m *AuthMiddleware) recordRole(logger *zap.Logger, r *http.Request, rc *requestctx.RequestContext, required rbac.Role, granted bool) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogRoleDecision(requestMeta(r), rc.TenantID, rc.UserID, rc.Role, required, granted); err != nil {
		logger.Warn("audit event dropped", zap.Error(err))
	}
}

func requestMeta(r *http.Request) audit.RequestMeta {
	ctx := r.Context()
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return audit.RequestMeta{
		TraceID:   shared.TraceID(ctx),
		RequestID: shared.RequestID(ctx),
		Method:    r.Method,
		Path:      r.URL.Path,
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
