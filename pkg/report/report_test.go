package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/perfsummary/internal/fixture"
	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

var fixedNow = func() time.Time { return time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC) }

func newStore(t *testing.T) *store.InputData {
	t.Helper()

	data, err := store.New([]results.CommitData{
		fixture.Record("aaaaaaaaaaaa", results.DateOf(2020, 1, 6), "foo", "bar",
			fixture.Link(10), results.Pass{Name: "llvm", Time: 4}),
		fixture.Record("bbbbbbbbbbbb", results.DateOf(2020, 1, 8), "foo", "bar",
			fixture.Link(12), results.Pass{Name: "llvm", Time: 3}),
	})
	require.NoError(t, err)

	return data
}

func newSummary(t *testing.T) *summary.Summary {
	t.Helper()

	builder, err := summary.NewBuilder(summary.DefaultOptions(), summary.Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	sum, err := builder.BuildLatest(context.Background(), newStore(t))
	require.NoError(t, err)

	return sum
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"text", "JSON", " yaml ", "html"} {
		_, err := report.ParseFormat(name)
		require.NoError(t, err, name)
	}

	_, err := report.ParseFormat("pdf")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestSummary_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.New(report.Options{Now: fixedNow}).Summary(&buf, newSummary(t), report.FormatText))

	out := buf.String()
	assert.Contains(t, out, "Performance summary as of 2020-01-08 (1 week ago)")
	assert.Contains(t, out, "Total [2019-10-06, 2020-01-15)")
	assert.Contains(t, out, "Week 0 [2020-01-05, 2020-01-12)")
	assert.Contains(t, out, "aaaaaaaaaa (2020-01-06) -> bbbbbbbbbb (2020-01-08)")
	assert.Contains(t, out, "+20.0%")
	assert.Contains(t, out, "-25.0%")
	assert.Contains(t, out, "11 weeks without enough commits")
	assert.NotContains(t, out, "\x1b[", "colour must be off by default")
}

func TestSummary_TextColorAndPhaseFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	renderer := report.New(report.Options{Now: fixedNow, Color: true, Phases: []string{"llvm"}})
	require.NoError(t, renderer.Summary(&buf, newSummary(t), report.FormatText))

	out := buf.String()
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "-25.0%")
	assert.NotContains(t, out, "+20.0%")
}

func TestSummary_JSONAndYAML(t *testing.T) {
	t.Parallel()

	sum := newSummary(t)
	renderer := report.New(report.Options{})

	var jsonBuf bytes.Buffer

	require.NoError(t, renderer.Summary(&jsonBuf, sum, report.FormatJSON))

	var decoded summary.Summary

	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, *sum, decoded)

	var yamlBuf bytes.Buffer

	require.NoError(t, renderer.Summary(&yamlBuf, sum, report.FormatYAML))

	var generic map[string]any

	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &generic))
	assert.Contains(t, generic, "total")
	assert.Contains(t, generic, "comparisons")
}

func TestSummary_HTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.New(report.Options{}).Summary(&buf, newSummary(t), report.FormatHTML))

	out := buf.String()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<!DOCTYPE html>") || strings.Contains(out, "<html"))
	assert.Contains(t, out, "Performance summary 2020-01-08")
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Weekly change")
}

func TestComparison_Formats(t *testing.T) {
	t.Parallel()

	sum := newSummary(t)
	renderer := report.New(report.Options{})

	for _, format := range report.Formats() {
		var buf bytes.Buffer

		require.NoError(t, renderer.Comparison(&buf, &sum.Total, format), format)
		assert.NotZero(t, buf.Len(), format)
	}

	require.ErrorIs(t, renderer.Comparison(io.Discard, &sum.Total, "csv"), report.ErrUnknownFormat)
}

func TestInfo_Formats(t *testing.T) {
	t.Parallel()

	info := newStore(t).Info()
	renderer := report.New(report.Options{Now: fixedNow})

	var buf bytes.Buffer

	require.NoError(t, renderer.Info(&buf, info, report.FormatText))
	assert.Contains(t, buf.String(), "2020-01-06")
	assert.Contains(t, buf.String(), "1: bar")
	assert.Contains(t, buf.String(), "2: link, llvm")

	buf.Reset()
	require.NoError(t, renderer.Info(&buf, info, report.FormatJSON))
	assert.Contains(t, buf.String(), `"last_date": "2020-01-08T00:00:00Z"`)

	require.ErrorIs(t, renderer.Info(io.Discard, info, report.FormatHTML), report.ErrUnsupportedFormat)
}

func TestChangesAndDigest(t *testing.T) {
	t.Parallel()

	sum := newSummary(t)

	changes := report.Changes(&sum.Total)
	require.Len(t, changes, 2)
	assert.Equal(t, "llvm", changes[0].Phase)
	assert.InDelta(t, -25.0, changes[0].Percent.Rounded(), 1e-9)
	assert.Equal(t, "link", changes[1].Phase)

	digest := report.Digest(sum, 0)
	assert.Contains(t, digest, "*Performance summary* as of 2020-01-08")
	assert.Contains(t, digest, "Regressions:\n• bar/link +20.0% (+2.000s)")
	assert.Contains(t, digest, "Improvements:\n• bar/llvm -25.0% (-1.000s)")
	assert.Contains(t, digest, "• week of 2020-01-05: largest bar/llvm -25.0%")
	assert.Contains(t, digest, "_11 of 12 weeks had fewer than two commits_")
}
