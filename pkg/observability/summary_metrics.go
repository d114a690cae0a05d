package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBuildsTotal    = "perfsummary.summary.builds.total"
	metricBuildDuration  = "perfsummary.summary.build.duration"
	metricWindowsTotal   = "perfsummary.summary.windows.total"
	metricFilesTotal     = "perfsummary.load.files.total"
	metricRecordsLoaded  = "perfsummary.load.records"
	metricLoadDuration   = "perfsummary.load.duration"
	attrWindowOutcome    = "outcome"
	attrFileOutcome      = "outcome"
	outcomeCompared      = "compared"
	outcomeOmitted       = "omitted"
	outcomeFileMeasured  = "measured"
	outcomeFileSkipped   = "skipped"
	outcomeFileMalformed = "malformed"
)

// LoadStats is the outcome of one directory scan, decoupled from loader types.
type LoadStats struct {
	Measured  int
	Skipped   int
	Malformed int
	Records   int
	Duration  time.Duration
}

// SummaryMetrics holds OTel instruments for ingestion and summary builds.
type SummaryMetrics struct {
	buildsTotal   metric.Int64Counter
	buildDuration metric.Float64Histogram
	windowsTotal  metric.Int64Counter
	filesTotal    metric.Int64Counter
	records       metric.Int64Gauge
	loadDuration  metric.Float64Histogram
}

// NewSummaryMetrics creates the load and build instruments.
func NewSummaryMetrics(mt metric.Meter) (*SummaryMetrics, error) {
	in := &instruments{mt: mt}

	sm := &SummaryMetrics{
		buildsTotal:   in.counter(metricBuildsTotal, "Summaries built", "{summary}"),
		buildDuration: in.seconds(metricBuildDuration, "Summary build duration", pipelineBuckets),
		windowsTotal:  in.counter(metricWindowsTotal, "Weekly windows by outcome", "{window}"),
		filesTotal:    in.counter(metricFilesTotal, "Result files scanned by outcome", "{file}"),
		records:       in.gauge(metricRecordsLoaded, "Commit records held after the last load", "{commit}"),
		loadDuration:  in.seconds(metricLoadDuration, "Results directory load duration", pipelineBuckets),
	}

	if err := in.err(); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordBuild records one completed summary build.
// Safe to call on a nil receiver (no-op).
func (sm *SummaryMetrics) RecordBuild(ctx context.Context, compared, omitted int, duration time.Duration) {
	if sm == nil {
		return
	}

	sm.buildsTotal.Add(ctx, 1)
	sm.buildDuration.Record(ctx, duration.Seconds())
	sm.windowsTotal.Add(ctx, int64(compared), metric.WithAttributes(attribute.String(attrWindowOutcome, outcomeCompared)))
	sm.windowsTotal.Add(ctx, int64(omitted), metric.WithAttributes(attribute.String(attrWindowOutcome, outcomeOmitted)))
}

// RecordLoad records one completed results directory scan.
// Safe to call on a nil receiver (no-op).
func (sm *SummaryMetrics) RecordLoad(ctx context.Context, stats LoadStats) {
	if sm == nil {
		return
	}

	sm.filesTotal.Add(ctx, int64(stats.Measured), metric.WithAttributes(attribute.String(attrFileOutcome, outcomeFileMeasured)))
	sm.filesTotal.Add(ctx, int64(stats.Skipped), metric.WithAttributes(attribute.String(attrFileOutcome, outcomeFileSkipped)))
	sm.filesTotal.Add(ctx, int64(stats.Malformed), metric.WithAttributes(attribute.String(attrFileOutcome, outcomeFileMalformed)))
	sm.records.Record(ctx, int64(stats.Records))
	sm.loadDuration.Record(ctx, stats.Duration.Seconds())
}
