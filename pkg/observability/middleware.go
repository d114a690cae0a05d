package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusWriter wraps [http.ResponseWriter] to capture the status code.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

// WriteHeader captures the status code before delegating to the wrapped writer.
func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(buf []byte) (int, error) {
	if !sw.written {
		sw.statusCode = http.StatusOK
		sw.written = true
	}

	n, err := sw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// HTTPMiddleware returns an [http.Handler] that creates a server span per
// request. The span starts as "METHOD /path" and is renamed to the matched
// [http.ServeMux] pattern once routing is done, so query-bearing and unknown
// paths do not fan out the op label. Records logged while serving carry the
// method and path. When red is non-nil each request is also counted, timed
// and tracked in flight per method; 4xx answers count as rejected and 5xx
// as errors.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		op := hr.Method + " " + hr.URL.Path

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		ctx = ContextWithLogAttrs(ctx, slog.String("method", hr.Method), slog.String("path", hr.URL.Path))

		if red != nil {
			done := red.TrackInflight(ctx, hr.Method)
			defer done()
		}

		started := time.Now()
		sw := &statusWriter{ResponseWriter: rw, statusCode: http.StatusOK}
		routed := hr.WithContext(ctx)
		next.ServeHTTP(sw, routed)

		if routed.Pattern != "" && routed.Pattern != op {
			op = routed.Pattern
			span.SetName(op)
		}

		span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

		status := StatusOK

		switch {
		case sw.statusCode >= http.StatusInternalServerError:
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
		case sw.statusCode >= http.StatusBadRequest:
			status = StatusRejected
		}

		if red != nil {
			red.RecordRequest(ctx, op, status, time.Since(started))
		}
	})
}
