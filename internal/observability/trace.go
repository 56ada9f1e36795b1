package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace returns logger annotated with the trace and span ids of the span
// active in ctx. Without an active span the logger is returned as is.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return logger
	}

	fields := []zap.Field{zap.String("trace_id", spanCtx.TraceID().String())}
	if spanCtx.HasSpanID() {
		fields = append(fields, zap.String("span_id", spanCtx.SpanID().String()))
	}
	return logger.With(fields...)
}
