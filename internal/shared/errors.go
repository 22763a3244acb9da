package shared

import (
	"errors"
	"fmt"
)

// ErrorType is the outward category of a failure. The HTTP boundary maps it to a status code.
type ErrorType string

const (
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeUnavailable     ErrorType = "unavailable"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeInternal        ErrorType = "internal"
)

// Kind identifies a specific failure within a type.
type Kind string

const (
	KindMalformedToken     Kind = "malformed_token"
	KindUnknownSigningKey  Kind = "unknown_signing_key"
	KindSignatureInvalid   Kind = "signature_invalid"
	KindTokenExpired       Kind = "token_expired"
	KindAudienceMismatch   Kind = "audience_mismatch"
	KindMissingSubject     Kind = "missing_subject"
	KindKeySetUnavailable  Kind = "key_set_unavailable"
	KindNoTenantMembership Kind = "no_tenant_membership"
	KindTenantLookupFailed Kind = "tenant_lookup_failed"
	KindUnknownRole        Kind = "unknown_role"
	KindInsufficientRole   Kind = "insufficient_role"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Kind    Kind
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Kind when the target carries one, otherwise on Type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Kind != "" {
		return e.Kind == t.Kind
	}
	return e.Type == t.Type
}

// Wrap returns a copy of e carrying cause. The sentinel itself is never mutated.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Type:    e.Type,
		Kind:    e.Kind,
		Message: e.Message,
		Err:     cause,
		Details: make(map[string]interface{}),
	}
}

// Wrapf is Wrap with a formatted cause.
func (e *DomainError) Wrapf(format string, args ...interface{}) *DomainError {
	return e.Wrap(fmt.Errorf(format, args...))
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, kind Kind, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Kind:    kind,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// Authentication failures, surfaced as 401.
	ErrMalformedToken    = NewDomainError(ErrorTypeUnauthenticated, KindMalformedToken, "malformed token", nil)
	ErrUnknownSigningKey = NewDomainError(ErrorTypeUnauthenticated, KindUnknownSigningKey, "unknown signing key", nil)
	ErrSignatureInvalid  = NewDomainError(ErrorTypeUnauthenticated, KindSignatureInvalid, "invalid token signature", nil)
	ErrTokenExpired      = NewDomainError(ErrorTypeUnauthenticated, KindTokenExpired, "token expired", nil)
	ErrAudienceMismatch  = NewDomainError(ErrorTypeUnauthenticated, KindAudienceMismatch, "token audience mismatch", nil)
	ErrMissingSubject    = NewDomainError(ErrorTypeUnauthenticated, KindMissingSubject, "token missing subject", nil)
	ErrKeySetUnavailable = NewDomainError(ErrorTypeUnauthenticated, KindKeySetUnavailable, "signing key set unavailable", nil)

	// Authorization failures, surfaced as 403.
	ErrNoTenantMembership = NewDomainError(ErrorTypeForbidden, KindNoTenantMembership, "no tenant membership found for this user", nil)
	ErrUnknownRole        = NewDomainError(ErrorTypeForbidden, KindUnknownRole, "unknown role", nil)
	ErrInsufficientRole   = NewDomainError(ErrorTypeForbidden, KindInsufficientRole, "insufficient role", nil)

	// The membership store could not be reached. Never reported as forbidden.
	ErrTenantLookupFailed = NewDomainError(ErrorTypeUnavailable, KindTenantLookupFailed, "tenant lookup failed", nil)

	ErrUnauthenticated = NewDomainError(ErrorTypeUnauthenticated, "", "authentication required", nil)
	ErrInternal        = NewDomainError(ErrorTypeInternal, "", "internal server error", nil)
)

// ErrRequestCanceled is joined into the cause of a failure that happened because the
// caller's context ended.
var ErrRequestCanceled = errors.New("request canceled")

// IsRequestCanceled reports whether err happened because the caller's context ended
func IsRequestCanceled(err error) bool {
	return errors.Is(err, ErrRequestCanceled)
}

// IsUnauthenticatedError checks if an error is an authentication failure
func IsUnauthenticatedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthenticated
}

// IsForbiddenError checks if an error is an authorization failure
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsUnavailableError checks if an error is a transient infrastructure failure
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorKind returns the Kind of a domain error, or empty string if not a domain error
func GetErrorKind(err error) Kind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
