package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Transport names the front end a request arrived through.
type Transport string

const (
	// TransportHTTP is the JSON/HTML API served by `perfsummary serve`.
	TransportHTTP Transport = "http"
	// TransportMCP is the MCP tool server.
	TransportMCP Transport = "mcp"
)

// Request outcomes. Only StatusError counts towards the error total.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

const (
	metricAPIRequests = "perfsummary.api.requests"
	metricAPILatency  = "perfsummary.api.request.duration"
	metricAPIErrors   = "perfsummary.api.errors"
	metricAPIInflight = "perfsummary.api.inflight"

	attrTransport = "transport"
	attrOp        = "op"
	attrStatus    = "status"
)

// Queries are answered from an in-memory snapshot, so API latency sits
// well under a second; a rebuild with overrides can take a few.
var apiLatencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Directory scans and full builds grow with the number of result files.
var pipelineBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// instruments creates instruments on a meter and keeps every creation error.
type instruments struct {
	mt   metric.Meter
	errs []error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.mt.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.track(name, err)

	return c
}

func (in *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := in.mt.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.track(name, err)

	return c
}

func (in *instruments) gauge(name, desc, unit string) metric.Int64Gauge {
	g, err := in.mt.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.track(name, err)

	return g
}

func (in *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := in.mt.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	in.track(name, err)

	return h
}

func (in *instruments) track(name string, err error) {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("create %s: %w", name, err))
	}
}

func (in *instruments) err() error {
	return errors.Join(in.errs...)
}

// REDMetrics counts, times and tracks in flight the requests of one
// transport.
type REDMetrics struct {
	transport attribute.KeyValue
	requests  metric.Int64Counter
	latency   metric.Float64Histogram
	errors    metric.Int64Counter
	inflight  metric.Int64UpDownCounter
}

// NewREDMetrics creates the API instruments for transport.
func NewREDMetrics(mt metric.Meter, transport Transport) (*REDMetrics, error) {
	in := &instruments{mt: mt}

	red := &REDMetrics{
		transport: attribute.String(attrTransport, string(transport)),
		requests:  in.counter(metricAPIRequests, "API requests by operation and outcome", "{request}"),
		latency:   in.seconds(metricAPILatency, "API request latency", apiLatencyBuckets),
		errors:    in.counter(metricAPIErrors, "API requests that failed server side", "{request}"),
		inflight:  in.upDown(metricAPIInflight, "API requests being served", "{request}"),
	}

	if err := in.err(); err != nil {
		return nil, err
	}

	return red, nil
}

// RecordRequest records a finished request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	opAttr := attribute.String(attrOp, op)
	attrs := metric.WithAttributes(rm.transport, opAttr, attribute.String(attrStatus, status))

	rm.requests.Add(ctx, 1, attrs)
	rm.latency.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errors.Add(ctx, 1, metric.WithAttributes(rm.transport, opAttr))
	}
}

// TrackInflight marks one request of op in flight until the returned
// func runs.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(rm.transport, attribute.String(attrOp, op))
	rm.inflight.Add(ctx, 1, attrs)

	return func() { rm.inflight.Add(ctx, -1, attrs) }
}
