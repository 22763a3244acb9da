package handlers

import (
	"errors"
	"net/http"

	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/loveshotsmedia/l3arn-updated/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Authentication failures are
// 401, authorization failures 403, and an unreachable membership store is a 500.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	kind := string(shared.GetErrorKind(err))
	message := publicMessage(err)
	details := shared.GetErrorDetails(err)

	var writeErr error
	switch {
	case shared.IsUnauthenticatedError(err):
		logger.Info("request unauthenticated", zap.String("kind", kind), zap.Error(err))
		writeErr = utils.WriteUnauthorized(w, kind, message)

	case shared.IsForbiddenError(err):
		logger.Info("request forbidden", zap.String("kind", kind), zap.Error(err))
		writeErr = utils.WriteForbidden(w, kind, message, details)

	case shared.IsUnavailableError(err):
		if shared.IsRequestCanceled(err) {
			logger.Info("request canceled during dependency call", zap.String("kind", kind), zap.Error(err))
		} else {
			logger.Error("dependency unavailable", zap.String("kind", kind), zap.Error(err))
		}
		writeErr = utils.WriteInternalServerError(w, kind, message)

	case shared.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case shared.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	default:
		// Unknown error type - log and return internal error
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(shared.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "", "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// publicMessage is the sentinel message without the wrapped cause, which may carry
// upstream response bodies or key ids.
func publicMessage(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}
