package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
)

type logAttrsKey struct{}

// ContextWithLogAttrs returns a context whose log records carry attrs in
// addition to any attached by outer calls. Front ends use it to stamp the
// route or tool on everything logged while serving a request.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}

	outer := LogAttrs(ctx)
	merged := make([]slog.Attr, 0, len(outer)+len(attrs))
	merged = append(merged, outer...)
	merged = append(merged, attrs...)

	return context.WithValue(ctx, logAttrsKey{}, merged)
}

// LogAttrs returns the attributes attached with ContextWithLogAttrs.
func LogAttrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(logAttrsKey{}).([]slog.Attr)

	return attrs
}

// TracingHandler is an [slog.Handler] that stamps records with the active
// span, the context's log attributes and, once at construction, the
// service/mode/env triple so it stays top level under WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner for the given service and mode. An empty
// env is omitted.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	static := []slog.Attr{slog.String(attrService, service), slog.String(attrMode, string(appMode))}
	if env != "" {
		static = append(static, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(static)}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	record.AddAttrs(LogAttrs(ctx)...)

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("handle log record: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
