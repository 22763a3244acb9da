package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/loveshotsmedia/l3arn-updated/config"
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a structured log field.
type Field = zap.Field

// NewLogger builds the process logger. format is "json" (production encoder) or "text"
// (development console encoder).
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "text", "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", config.ServiceName)), nil
}

// FromContext returns base annotated with the trace and request ids found in ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := make([]Field, 0, 2)
	if traceID := shared.TraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if requestID := shared.RequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
