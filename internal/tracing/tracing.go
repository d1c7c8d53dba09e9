// Package tracing provides the OpenTelemetry span helpers workflow.Run uses
// for its one span per run; retry-wrapped calls get no spans of their own.
// It mirrors how the teacher threads a trace.Tracer
// through context.Context and records span errors
// (common/context.go, common/net/http/withTelemetry.go) rather than
// building a bespoke tracing abstraction.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracerContextKey struct{}

// LibraryName is the instrumentation library name registered with the
// global otel TracerProvider.
const LibraryName = "github.com/savannahghi/idrclient"

// ContextWithTracer returns a context carrying tracer, for code that wants
// to override the default (e.g. tests injecting a no-op TracerProvider).
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerContextKey{}, tracer)
}

// TracerFromContext returns the tracer stashed by ContextWithTracer, or the
// global tracer registered under LibraryName.
//
//nolint:ireturn
func TracerFromContext(ctx context.Context) trace.Tracer {
	if t, ok := ctx.Value(tracerContextKey{}).(trace.Tracer); ok && t != nil {
		return t
	}

	return otel.Tracer(LibraryName)
}

// StartSpan starts a span named name under the context's tracer, returning
// the derived context and the span. Callers must defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := TracerFromContext(ctx).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	return ctx, span
}

// RecordError marks span as failed and records err, mirroring the teacher's
// HandleSpanError helper. It is a no-op when err is nil.
func RecordError(span trace.Span, message string, err error) {
	if err == nil {
		return
	}

	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}
