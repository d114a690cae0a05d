package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
)

func newRecordingTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return tp.Tracer("test"), exporter
}

func TestHTTPMiddleware_CreatesSpan(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)

	var spanValid bool

	handler := http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		spanValid = trace.SpanContextFromContext(hr.Context()).IsValid()

		_, _ = rw.Write([]byte("ok"))
	})

	rec := httptest.NewRecorder()
	observability.HTTPMiddleware(tracer, nil, handler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", http.NoBody))

	assert.True(t, spanValid)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/summary", spans[0].Name)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
	assert.NotEqual(t, codes.Error, spans[0].Status.Code)
}

func TestHTTPMiddleware_ServerErrorMarksSpan(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)
	mp, reader := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"), observability.TransportHTTP)
	require.NoError(t, err)

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	observability.HTTPMiddleware(tracer, red, handler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compare", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt(t, findMetric(rm, "perfsummary.api.errors")))
	assert.Equal(t, int64(0), sumInt(t, findMetric(rm, "perfsummary.api.inflight")))
}

func TestHTTPMiddleware_ExtractsTraceParent(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)

	handler := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("Traceparent", "00-0102030405060708090a0b0c0d0e0f10-0102030405060708-01")

	// Carry the parent in the context so the result does not depend on the global propagator.
	prop := propagation.TraceContext{}
	ctx := prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

	rec := httptest.NewRecorder()
	observability.HTTPMiddleware(tracer, nil, handler).ServeHTTP(rec, req.WithContext(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "0102030405060708", spans[0].Parent.SpanID().String())
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/commits/{sha}", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})

	handler := observability.HTTPMiddleware(tracer, nil, mux)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/commits/abc123", http.NoBody))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/commits/{sha}", spans[0].Name)
	assert.Equal(t, "GET /nope", spans[1].Name)
}

func TestHTTPMiddleware_ClientErrorIsRejected(t *testing.T) {
	t.Parallel()

	tracer, exporter := newRecordingTracer(t)
	mp, reader := newManualMeter(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"), observability.TransportHTTP)
	require.NoError(t, err)

	var logPath string

	handler := http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, attr := range observability.LogAttrs(hr.Context()) {
			if attr.Key == "path" {
				logPath = attr.Value.String()
			}
		}

		rw.WriteHeader(http.StatusBadRequest)
	})

	observability.HTTPMiddleware(tracer, red, handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/summary?weeks=0", http.NoBody))

	assert.Equal(t, "/api/summary", logPath)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status.Code)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt(t, findMetric(rm, "perfsummary.api.requests")))
	assert.Nil(t, findMetric(rm, "perfsummary.api.errors"))
}
