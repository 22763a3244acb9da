// Package verifier validates Supabase-issued bearer tokens against the cached signing key set.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/loveshotsmedia/l3arn-updated/jwks"
	"go.uber.org/zap"
)

// DefaultAudience is the audience Supabase stamps on end-user access tokens.
const DefaultAudience = "authenticated"

// AppMetadata is the server-controlled metadata block of a Supabase token.
type AppMetadata struct {
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Claims represents the claims in a Supabase access token
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

// Identity is the verified result of a token. It must not be modified after Verify returns it.
type Identity struct {
	Subject string
	Email   string
	// Role is the top-level role claim, "authenticated" for signed-in users.
	Role string
	// RoleHint is app_metadata.role. It is informational and never grants access.
	RoleHint   string
	Audience   []string
	ExpiresAt  time.Time
	TenantHint string
	raw        map[string]interface{}
}

// UserID returns the subject, which Supabase sets to the auth user id.
func (i *Identity) UserID() string {
	return i.Subject
}

// Claims returns a copy of the token's top-level claims.
func (i *Identity) Claims() map[string]interface{} {
	return maps.Clone(i.raw)
}

// KeySource supplies the current signing key set.
type KeySource interface {
	Get(ctx context.Context) (*jwks.KeySet, error)
}

// Config holds configuration for Verifier
type Config struct {
	Audience          string
	AllowedAlgorithms []string
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Verifier validates bearer tokens
type Verifier struct {
	keys   KeySource
	parser *jwt.Parser
	logger *zap.Logger
}

// New creates a Verifier. Every entry of cfg.AllowedAlgorithms must be a registered
// signing method other than "none".
func New(keys KeySource, cfg Config, logger *zap.Logger) (*Verifier, error) {
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if len(cfg.AllowedAlgorithms) == 0 {
		return nil, errors.New("at least one allowed algorithm is required")
	}
	for _, alg := range cfg.AllowedAlgorithms {
		if alg == "none" || jwt.GetSigningMethod(alg) == nil {
			return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(cfg.AllowedAlgorithms),
		jwt.WithAudience(cfg.Audience),
		jwt.WithTimeFunc(cfg.Clock),
	)

	return &Verifier{
		keys:   keys,
		parser: parser,
		logger: logger,
	}, nil
}

// Verify validates tokenString and returns the identity it carries. Every failure is a
// *shared.DomainError of type unauthenticated whose Kind names the failed check.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	identity, err := v.verify(ctx, tokenString)
	if err != nil {
		v.logger.Debug("jwt.verify_failed",
			zap.String("kind", string(shared.GetErrorKind(err))),
			zap.Error(err))
		return nil, err
	}
	return identity, nil
}

func (v *Verifier) verify(ctx context.Context, tokenString string) (*Identity, error) {
	raw := jwt.MapClaims{}
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, raw)
	if err != nil {
		return nil, shared.ErrMalformedToken.Wrap(err)
	}

	set, err := v.keys.Get(ctx)
	if err != nil {
		return nil, err
	}

	kid, _ := unverified.Header["kid"].(string)
	key, ok := set.Lookup(kid)
	if kid == "" || !ok {
		return nil, shared.ErrUnknownSigningKey.Wrapf("kid %q not in key set", kid)
	}
	if key.Algorithm != "" && key.Algorithm != unverified.Method.Alg() {
		return nil, shared.ErrSignatureInvalid.Wrapf("key %s is for %s, token uses %s",
			kid, key.Algorithm, unverified.Method.Alg())
	}

	claims := &Claims{}
	_, err = v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key.Material, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.ExpiresAt == nil {
		return nil, shared.ErrMalformedToken.Wrap(errors.New("exp claim is required"))
	}
	if claims.Subject == "" {
		return nil, shared.ErrMissingSubject.Wrap(errors.New("sub claim is empty"))
	}

	return &Identity{
		Subject:    claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		RoleHint:   claims.AppMetadata.Role,
		Audience:   claims.Audience,
		ExpiresAt:  claims.ExpiresAt.Time,
		TenantHint: claims.AppMetadata.TenantID,
		raw:        maps.Clone(raw),
	}, nil
}

// classify maps a jwt parse error to its failure kind. The parser checks the signature
// before any claim, so a forged token is never reported as expired.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return shared.ErrMalformedToken.Wrap(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return shared.ErrSignatureInvalid.Wrap(err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return shared.ErrTokenExpired.Wrap(err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return shared.ErrAudienceMismatch.Wrap(err)
	default:
		return shared.ErrMalformedToken.Wrap(err)
	}
}
