// Package requestctx composes token verification and tenant resolution into the
// per-request authorization result handlers consume.
package requestctx

import (
	"context"

	"github.com/loveshotsmedia/l3arn-updated/internal/rbac"
	"github.com/loveshotsmedia/l3arn-updated/tenant"
	"github.com/loveshotsmedia/l3arn-updated/verifier"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*verifier.Identity, error)
}

// TenantResolver resolves the tenant a user acts on.
type TenantResolver interface {
	Resolve(ctx context.Context, userID, hint string) (*tenant.Context, error)
}

// Trace carries the ids assigned by the tracing middleware.
type Trace struct {
	TraceID   string
	RequestID string
}

// RequestContext is everything a handler needs to know about the caller. Role is the
// role stored on the tenant membership and is the only role used for authorization.
type RequestContext struct {
	UserID    string
	TenantID  string
	Role      rbac.Role
	TraceID   string
	RequestID string
	Identity  *verifier.Identity
}

// Builder builds RequestContexts.
type Builder struct {
	verifier TokenVerifier
	resolver TenantResolver
	logger   *zap.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(verifier TokenVerifier, resolver TenantResolver, logger *zap.Logger) *Builder {
	return &Builder{verifier: verifier, resolver: resolver, logger: logger}
}

// Build verifies token and resolves the caller's tenant. tenantHint is the client's
// requested tenant; when empty the token's app_metadata.tenant_id is used. Role checks
// are left to the operation that needs them. Errors are returned unchanged so the
// boundary can map them by kind.
func (b *Builder) Build(ctx context.Context, token, tenantHint string, trace Trace) (*RequestContext, error) {
	identity, err := b.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	hint := tenantHint
	if hint == "" {
		hint = identity.TenantHint
	}

	tc, err := b.resolver.Resolve(ctx, identity.UserID(), hint)
	if err != nil {
		return nil, err
	}

	if identity.RoleHint != "" && identity.RoleHint != tc.Role.String() {
		b.logger.Debug("rbac.role_hint_ignored",
			zap.String("user_id", identity.UserID()),
			zap.String("role_hint", identity.RoleHint),
			zap.String("role", tc.Role.String()))
	}

	return &RequestContext{
		UserID:    identity.UserID(),
		TenantID:  tc.TenantID,
		Role:      tc.Role,
		TraceID:   trace.TraceID,
		RequestID: trace.RequestID,
		Identity:  identity,
	}, nil
}

type ctxKey struct{}

// WithRequestContext stores rc in ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, or nil.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(ctxKey{}).(*RequestContext)
	return rc
}
