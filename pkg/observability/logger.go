package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Keys of the attributes every gridagg log record carries.
const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
	attrRunID   = "run_id"
)

// TracingHandler stamps log records with the run they belong to and, inside a
// pipeline phase, with the trace and span of that phase. Run attributes are
// bound once on the inner handler so that WithGroup never nests them.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler binds service, mode, env and run id to inner.
// Empty env and run id are omitted.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode, runID string) *TracingHandler {
	bound := make([]slog.Attr, 0, 4)
	bound = append(bound, slog.String(attrService, service), slog.String(attrMode, string(appMode)))

	for _, a := range []slog.Attr{slog.String(attrEnv, env), slog.String(attrRunID, runID)} {
		if a.Value.String() != "" {
			bound = append(bound, a)
		}
	}

	return &TracingHandler{inner: inner.WithAttrs(bound)}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle appends trace_id and span_id when ctx holds a valid span.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("write log record: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
