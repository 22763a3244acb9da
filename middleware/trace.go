package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/loveshotsmedia/l3arn-updated/internal/observability"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"go.uber.org/zap"
)

// Header names used for request correlation and tenant selection
const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"
	TenantIDHeader  = "X-Tenant-Id"
)

// maxTraceIDLength bounds client-supplied trace ids before they reach logs and the audit table.
const maxTraceIDLength = 128

// Trace assigns every request a trace id (propagated from X-Trace-Id when the client sent
// one) and a fresh request id, echoes both as response headers and logs the request.
func Trace(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" || len(traceID) > maxTraceIDLength {
				traceID = uuid.NewString()
			}
			requestID := uuid.NewString()

			ctx := shared.WithTraceID(r.Context(), traceID)
			ctx = shared.WithRequestID(ctx, requestID)

			w.Header().Set(TraceIDHeader, traceID)
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := observability.FromContext(ctx, logger)
			reqLogger.Info("request.start",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			reqLogger.Info("request.end",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
		})
	}
}
