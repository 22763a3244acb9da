// Package tenant resolves which tenant a request acts on and the caller's role in it.
package tenant

import (
	"context"
	"time"

	"github.com/loveshotsmedia/l3arn-updated/internal/rbac"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"go.uber.org/zap"
)

// Membership is a row linking a user to a tenant.
type Membership struct {
	TenantID  string    `json:"tenant_id" validate:"required"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Context is the tenant a request acts on. It is built per request and never cached.
type Context struct {
	TenantID string    `json:"tenant_id"`
	Role     rbac.Role `json:"role"`
	UserID   string    `json:"user_id"`
}

// MembershipStore reads memberships and profile preferences.
type MembershipStore interface {
	// LookupMembership returns the membership of userID in tenantID. An empty tenantID
	// selects the user's earliest-created membership.
	LookupMembership(ctx context.Context, userID, tenantID string) (Membership, bool, error)
	// DefaultTenant returns the user's stored default tenant, or "" if none is set.
	DefaultTenant(ctx context.Context, userID string) (string, error)
}

// Source names the fallback step that produced a Context.
type Source string

const (
	SourceHint     Source = "hint"
	SourceDefault  Source = "default"
	SourceEarliest Source = "earliest"
)

// Resolver applies the hint, default tenant, earliest membership fallback.
type Resolver struct {
	store  MembershipStore
	logger *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(store MembershipStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the tenant context for userID, stopping at the first step that finds a
// membership. Store failures are reported as shared.ErrTenantLookupFailed and are never
// confused with shared.ErrNoTenantMembership.
func (r *Resolver) Resolve(ctx context.Context, userID, hint string) (*Context, error) {
	if hint != "" {
		row, found, err := r.store.LookupMembership(ctx, userID, hint)
		if err != nil {
			return nil, lookupFailed(ctx, "hinted membership", err)
		}
		if found {
			return r.resolved(userID, row, SourceHint)
		}
		r.logger.Debug("tenant.hint_not_member",
			zap.String("user_id", userID),
			zap.String("tenant_hint", hint))
	}

	def, err := r.store.DefaultTenant(ctx, userID)
	if err != nil {
		return nil, lookupFailed(ctx, "default tenant", err)
	}
	if target, ok := defaultTarget(hint, def); ok {
		row, found, err := r.store.LookupMembership(ctx, userID, target)
		if err != nil {
			return nil, lookupFailed(ctx, "default membership", err)
		}
		if found {
			return r.resolved(userID, row, SourceDefault)
		}
	}

	row, found, err := r.store.LookupMembership(ctx, userID, "")
	if err != nil {
		return nil, lookupFailed(ctx, "earliest membership", err)
	}
	if found {
		return r.resolved(userID, row, SourceEarliest)
	}

	return nil, shared.ErrNoTenantMembership.Wrapf("user %s", userID)
}

func (r *Resolver) resolved(userID string, row Membership, source Source) (*Context, error) {
	tc, err := contextFromRow(userID, row)
	if err != nil {
		r.logger.Warn("tenant.invalid_membership",
			zap.String("user_id", userID),
			zap.String("tenant_id", row.TenantID),
			zap.String("role", row.Role),
			zap.Error(err))
		return nil, err
	}
	r.logger.Debug("tenant.resolved",
		zap.String("user_id", userID),
		zap.String("tenant_id", tc.TenantID),
		zap.String("role", tc.Role.String()),
		zap.String("source", string(source)))
	return tc, nil
}

// defaultTarget returns the stored default tenant to try, skipping it when it is the
// hint that was already looked up.
func defaultTarget(hint, def string) (string, bool) {
	if def == "" || def == hint {
		return "", false
	}
	return def, true
}

// contextFromRow turns a fetched membership into a Context. A role outside the known
// hierarchy fails with shared.ErrUnknownRole.
func contextFromRow(userID string, row Membership) (*Context, error) {
	if row.TenantID == "" {
		return nil, shared.ErrTenantLookupFailed.Wrapf("membership row for user %s has no tenant_id", userID)
	}
	role, err := rbac.ParseRole(row.Role)
	if err != nil {
		return nil, err
	}
	return &Context{TenantID: row.TenantID, Role: role, UserID: userID}, nil
}

// lookupFailed wraps a store error. A lookup cut short by the caller's context also
// matches shared.ErrRequestCanceled and the context error.
func lookupFailed(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return shared.ErrTenantLookupFailed.Wrapf("%s: %w (%w): %w", step, shared.ErrRequestCanceled, ctxErr, err)
	}
	return shared.ErrTenantLookupFailed.Wrapf("%s: %w", step, err)
}
