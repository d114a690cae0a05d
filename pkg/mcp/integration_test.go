package mcp_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/perfsummary/internal/fixture"
	"github.com/Sumatoshi-tech/perfsummary/pkg/mcp"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

func newService(t *testing.T, dataDir string) *service.Service {
	t.Helper()

	svc, err := service.New(service.Options{DataDir: dataDir, Summary: summary.DefaultOptions()},
		service.Deps{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)

	return svc
}

func populatedService(t *testing.T) *service.Service {
	t.Helper()

	dataDir := t.TempDir()
	records := fixture.WeeklyLadder(results.DateOf(2020, 1, 6), 4, 10, 1)
	records = append(records, fixture.Record("x01", results.DateOf(2020, 1, 29), "foo", "bar", fixture.Link(20)))
	require.NoError(t, fixture.WriteTimes(dataDir, records...))

	return newService(t, dataDir)
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestMCPServer_ToolsList(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{Service: populatedService(t)})
	assert.Equal(t, []string{"perf_compare", "perf_info", "perf_summary"}, srv.ListToolNames())

	session := connect(t, srv)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 3)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}

func TestMCPServer_Summary(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Service: populatedService(t)}))

	result := callTool(t, session, mcp.ToolNameSummary, map[string]any{})
	require.False(t, result.IsError)

	var out struct {
		Summary summary.Summary  `json:"summary"`
		Top     []map[string]any `json:"top_changes"`
	}

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &out))
	assert.Equal(t, results.DateOf(2020, 1, 29), out.Summary.Reference)
	assert.Len(t, out.Summary.Comparisons, 1)
	require.Len(t, out.Top, 1)
	assert.InDelta(t, 100.0, out.Top[0]["percent"], 1e-9)

	result = callTool(t, session, mcp.ToolNameSummary, map[string]any{"weeks": 2, "reference": "2020-01-13"})
	require.False(t, result.IsError)
	assert.Contains(t, firstText(t, result), `"reference": "2020-01-13T00:00:00Z"`)

	result = callTool(t, session, mcp.ToolNameSummary, map[string]any{"reference": "not a date"})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "invalid query")

	result = callTool(t, session, mcp.ToolNameSummary, map[string]any{"weeks": 2000000000})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "weeks out of range")
}

func TestMCPServer_Compare(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Service: populatedService(t)}))

	result := callTool(t, session, mcp.ToolNameCompare, map[string]any{"a": "c00", "b": "x01"})
	require.False(t, result.IsError)

	var cmp map[string]any

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &cmp))
	assert.Equal(t, map[string]any{"bar": map[string]any{"link": 10.0}}, cmp["by_crate"])

	result = callTool(t, session, mcp.ToolNameCompare, map[string]any{"a": "c00", "b": "missing"})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "commit not found")
}

func TestMCPServer_Info(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Service: populatedService(t)}))

	result := callTool(t, session, mcp.ToolNameInfo, map[string]any{})
	require.False(t, result.IsError)
	assert.Contains(t, firstText(t, result), `"records": 5`)
	assert.Contains(t, firstText(t, result), `"phases": [`)
}

func TestMCPServer_LoadFailure(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{Service: newService(t, t.TempDir())})

	_, serverTransport := mcpsdk.NewInMemoryTransports()

	require.Error(t, srv.RunWithTransport(context.Background(), serverTransport))
}

func TestMCPServer_TracingAndMetrics(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"), observability.TransportMCP)
	require.NoError(t, err)

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Service: populatedService(t),
		Tracer:  tp.Tracer("test"),
		Metrics: red,
	}))

	result := callTool(t, session, mcp.ToolNameInfo, map[string]any{})
	require.False(t, result.IsError)

	last, ok := result.Content[len(result.Content)-1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, last.Text, "trace_id=")

	failed := callTool(t, session, mcp.ToolNameCompare, map[string]any{"a": "zzz", "b": "c00"})
	assert.True(t, failed.IsError)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.Contains(t, names, "mcp.perf_info")
	assert.Contains(t, names, "mcp.perf_compare")

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	statuses := map[string]bool{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "perfsummary.api.requests" {
				continue
			}

			sum, isSum := m.Data.(metricdata.Sum[int64])
			require.True(t, isSum)

			for _, dp := range sum.DataPoints {
				for _, kv := range dp.Attributes.ToSlice() {
					statuses[kv.Value.Emit()] = true
				}
			}
		}
	}

	assert.True(t, statuses[observability.StatusOK])
	assert.True(t, statuses[observability.StatusError])
}
