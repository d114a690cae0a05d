// Package loader reads per-commit benchmark result files from a results
// directory and turns them into a record store.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
)

// TimesDir is the subdirectory of the data directory that holds one result
// file per commit.
const TimesDir = "times"

const tracerName = "perfsummary"

// ErrNoRecords is returned when a scan finds no usable result file.
var ErrNoRecords = errors.New("no measured commits")

// Stats counts the outcome of one scan.
type Stats struct {
	// Files is every regular file seen in the times directory.
	Files int `json:"files"`
	// Skipped is files that produced no record.
	Skipped int `json:"skipped"`
	// Malformed is the subset of Skipped that failed to parse or broke the schema.
	Malformed int `json:"malformed"`
	// Measured is files that produced a record.
	Measured int `json:"measured"`
}

// Options configures a Loader.
type Options struct {
	// Workers bounds concurrent file parsing. Zero uses runtime.NumCPU().
	Workers int
	// ValidateSchema checks each document against the embedded JSON schema.
	ValidateSchema bool
}

// Deps holds optional collaborators of a Loader.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.SummaryMetrics
}

// Loader scans results directories.
type Loader struct {
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.SummaryMetrics
}

// New creates a Loader.
func New(opts Options, deps Deps) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Loader{opts: opts, logger: logger, tracer: tracer, metrics: deps.Metrics}
}

type outcome int

const (
	outcomeMeasured outcome = iota
	outcomeSkipped
	outcomeMalformed
)

type fileResult struct {
	record  results.CommitData
	outcome outcome
}

// Load parses every file in <dataDir>/times. Directories are ignored.
// Empty, unparsable, schema-violating and structurally invalid files are
// logged and skipped. Records come back in file-name order.
func (l *Loader) Load(ctx context.Context, dataDir string) ([]results.CommitData, Stats, error) {
	dir := filepath.Join(dataDir, TimesDir)

	ctx, span := l.tracer.Start(ctx, "perfsummary.load",
		trace.WithAttributes(attribute.String("load.dir", dir)))
	defer span.End()

	started := time.Now()

	records, stats, err := l.load(ctx, dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, stats, err
	}

	span.SetAttributes(
		attribute.Int("load.files", stats.Files),
		attribute.Int("load.skipped", stats.Skipped),
		attribute.Int("load.measured", stats.Measured),
	)

	l.logger.InfoContext(ctx, "loaded results",
		"dir", dir, "total", stats.Files, "skipped", stats.Skipped, "measured", stats.Measured)

	l.metrics.RecordLoad(ctx, observability.LoadStats{
		Measured:  stats.Measured,
		Skipped:   stats.Skipped - stats.Malformed,
		Malformed: stats.Malformed,
		Records:   len(records),
		Duration:  time.Since(started),
	})

	return records, stats, nil
}

// LoadStore loads dataDir and builds a record store from it.
func (l *Loader) LoadStore(ctx context.Context, dataDir string) (*store.InputData, Stats, error) {
	records, stats, err := l.Load(ctx, dataDir)
	if err != nil {
		return nil, stats, err
	}

	if len(records) == 0 {
		return nil, stats, fmt.Errorf("%w in %s", ErrNoRecords, filepath.Join(dataDir, TimesDir))
	}

	data, err := store.New(records)
	if err != nil {
		return nil, stats, fmt.Errorf("build store: %w", err)
	}

	if data.Collapsed() > 0 {
		l.logger.WarnContext(ctx, "commits share a date, keeping the last measurement",
			"collapsed", data.Collapsed())
	}

	return data, stats, nil
}

func (l *Loader) load(ctx context.Context, dir string) ([]results.CommitData, Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read results directory: %w", err)
	}

	paths := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	slots := make([]fileResult, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(l.opts.Workers)

	for i, path := range paths {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			res, fileErr := l.parseFile(groupCtx, path)
			if fileErr != nil {
				return fileErr
			}

			slots[i] = res

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("load %s: %w", dir, err)
	}

	stats := Stats{Files: len(paths)}
	records := make([]results.CommitData, 0, len(paths))

	for _, slot := range slots {
		switch slot.outcome {
		case outcomeMeasured:
			stats.Measured++

			records = append(records, slot.record)
		case outcomeMalformed:
			stats.Malformed++
			stats.Skipped++
		case outcomeSkipped:
			stats.Skipped++
		}
	}

	return records, stats, nil
}

// parseFile returns an error only for I/O failures; bad content is an outcome.
func (l *Loader) parseFile(ctx context.Context, path string) (fileResult, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return fileResult{}, err
	}

	name := filepath.Base(path)

	if len(bytes.TrimSpace(raw)) == 0 {
		l.logger.WarnContext(ctx, "skipping empty file", "file", name)

		return fileResult{outcome: outcomeSkipped}, nil
	}

	var record results.CommitData

	err = json.Unmarshal(raw, &record)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to parse result file", "file", name, "error", err)

		return fileResult{outcome: outcomeMalformed}, nil
	}

	if l.opts.ValidateSchema {
		violations, schemaErr := ValidateDocument(raw)
		if schemaErr != nil {
			return fileResult{}, schemaErr
		}

		if len(violations) > 0 {
			l.logger.WarnContext(ctx, "skipping file that violates the result schema",
				"file", name, "violations", joinViolations(violations))

			return fileResult{outcome: outcomeMalformed}, nil
		}
	}

	err = record.Validate()
	if err != nil {
		l.logger.WarnContext(ctx, "skipping invalid record", "file", name, "error", err)

		return fileResult{outcome: outcomeSkipped}, nil
	}

	return fileResult{record: record, outcome: outcomeMeasured}, nil
}

func joinViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}

	return strings.Join(parts, "; ")
}
