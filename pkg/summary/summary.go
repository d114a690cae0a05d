// Package summary reduces a record store into weekly performance
// comparisons plus one long-range total comparison.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
)

const tracerName = "perfsummary"

// minWindowRecords is the number of distinct records a weekly window needs
// before it is compared.
const minWindowRecords = 2

// ErrNoTotalRange is returned when no record falls inside the total window.
var ErrNoTotalRange = errors.New("no commits in total range")

// Window is a half-open date interval [Start, End).
type Window struct {
	Index int          `json:"index" yaml:"index"`
	Start results.Date `json:"start" yaml:"start"`
	End   results.Date `json:"end"   yaml:"end"`
}

// Week is the comparison computed for one weekly window.
type Week struct {
	Window             `yaml:",inline"`
	compare.Comparison `yaml:",inline"`
}

// Summary is the complete report: a total comparison plus up to
// Options.Weeks weekly comparisons, most recent first.
type Summary struct {
	Reference   results.Date       `json:"reference"         yaml:"reference"`
	Total       compare.Comparison `json:"total"             yaml:"total"`
	TotalWindow Window             `json:"total_window"      yaml:"total_window"`
	Comparisons []Week             `json:"comparisons"       yaml:"comparisons"`
	Omitted     []Window           `json:"omitted,omitempty" yaml:"omitted,omitempty"`
}

// Deps holds optional collaborators of a Builder. Zero values use defaults.
type Deps struct {
	// Logger receives degraded-data warnings. Nil uses slog.Default().
	Logger *slog.Logger
	// Tracer creates the build span. Nil uses the global tracer provider.
	Tracer trace.Tracer
	// Metrics records build statistics. Nil disables them.
	Metrics *observability.SummaryMetrics
}

// Builder computes Summaries from a record store.
type Builder struct {
	opts       Options
	comparator *compare.Comparator
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *observability.SummaryMetrics
}

// NewBuilder validates opts and creates a Builder.
func NewBuilder(opts Options, deps Deps) (*Builder, error) {
	err := opts.Validate()
	if err != nil {
		return nil, fmt.Errorf("summary options: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Builder{
		opts:       opts,
		comparator: compare.NewComparator(logger),
		logger:     logger,
		tracer:     tracer,
		metrics:    deps.Metrics,
	}, nil
}

// Options returns the builder's options.
func (b *Builder) Options() Options {
	return b.opts
}

// Windows returns the weekly windows for reference, most recent first.
func (b *Builder) Windows(reference results.Date) []Window {
	weekStart := reference.StartOfWeek(b.opts.WeekStart)
	windows := make([]Window, b.opts.Weeks)

	for i := range windows {
		start := b.back(weekStart, i)
		windows[i] = Window{Index: i, Start: start, End: start.Add(b.opts.Window)}
	}

	return windows
}

// back returns the date n windows before from. Calendar weeks step with AddWeeks;
// other widths multiply, which Validate keeps inside time.Duration.
func (b *Builder) back(from results.Date, n int) results.Date {
	if b.opts.Window == results.Week {
		return from.AddWeeks(-n)
	}

	return from.Add(-time.Duration(n) * b.opts.Window)
}

// TotalWindow returns the long-range window for reference. It ends one
// window past reference rather than at a week boundary so the latest
// commit is always included.
func (b *Builder) TotalWindow(reference results.Date) Window {
	weekStart := reference.StartOfWeek(b.opts.WeekStart)

	return Window{
		Index: -1,
		Start: b.back(weekStart, b.opts.TotalWeeks),
		End:   reference.Add(b.opts.Window),
	}
}

// BuildLatest builds a summary anchored at the store's last date.
func (b *Builder) BuildLatest(ctx context.Context, data *store.InputData) (*Summary, error) {
	return b.Build(ctx, data, data.LastDate())
}

// Build computes the weekly comparisons and the total comparison for
// reference. Windows holding fewer than two records are left out.
func (b *Builder) Build(ctx context.Context, data *store.InputData, reference results.Date) (*Summary, error) {
	ctx, span := b.tracer.Start(ctx, "perfsummary.summary.build",
		trace.WithAttributes(
			attribute.String("summary.reference", reference.String()),
			attribute.Int("summary.weeks", b.opts.Weeks),
			attribute.Int("summary.records", data.Len()),
		))
	defer span.End()

	started := time.Now()

	windows := b.Windows(reference)
	slots := make([]*compare.Comparison, len(windows))

	err := b.compareWindows(ctx, data, windows, slots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	sum := &Summary{
		Reference:   reference,
		TotalWindow: b.TotalWindow(reference),
		Comparisons: make([]Week, 0, len(windows)),
	}

	for i, window := range windows {
		if slots[i] == nil {
			sum.Omitted = append(sum.Omitted, window)

			continue
		}

		sum.Comparisons = append(sum.Comparisons, Week{Window: window, Comparison: *slots[i]})
	}

	total, err := b.compareTotal(ctx, data, sum.TotalWindow)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	sum.Total = *total

	span.SetAttributes(
		attribute.Int("summary.compared", len(sum.Comparisons)),
		attribute.Int("summary.omitted", len(sum.Omitted)),
	)

	b.metrics.RecordBuild(ctx, len(sum.Comparisons), len(sum.Omitted), time.Since(started))

	return sum, nil
}

func (b *Builder) compareWindows(
	ctx context.Context, data *store.InputData, windows []Window, slots []*compare.Comparison,
) error {
	if !b.opts.Parallel {
		for i, window := range windows {
			cmp, err := b.compareWindow(ctx, data, window)
			if err != nil {
				return err
			}

			slots[i] = cmp
		}

		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for i, window := range windows {
		group.Go(func() error {
			cmp, err := b.compareWindow(groupCtx, data, window)
			if err != nil {
				return err
			}

			slots[i] = cmp

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("compare windows: %w", err)
	}

	return nil
}

// compareWindow returns nil without error when the window is too sparse.
func (b *Builder) compareWindow(ctx context.Context, data *store.InputData, window Window) (*compare.Comparison, error) {
	b.logger.DebugContext(ctx, "summarizing week",
		"week", window.Index, "start", window.Start.String(), "end", window.End.String())

	week := data.Range(window.Start, window.End)
	if week.Len() < minWindowRecords {
		b.logger.WarnContext(ctx, "week has too few commits",
			"week", window.Index, "start", window.Start.String(), "end", window.End.String(), "commits", week.Len())

		return nil, nil //nolint:nilnil // a sparse window is not an error.
	}

	_, first, _ := week.First()
	_, last, _ := week.Last()

	b.logger.DebugContext(ctx, "week endpoints",
		"week", window.Index, "first", first.Commit.Date.String(), "last", last.Commit.Date.String())

	cmp, err := b.comparator.Compare(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("week %d (%s to %s): %w", window.Index, window.Start, window.End, err)
	}

	return cmp, nil
}

func (b *Builder) compareTotal(ctx context.Context, data *store.InputData, window Window) (*compare.Comparison, error) {
	rng := data.Range(window.Start, window.End)

	_, first, okFirst := rng.First()
	_, last, okLast := rng.Last()

	if !okFirst || !okLast {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoTotalRange, window.Start, window.End)
	}

	cmp, err := b.comparator.Compare(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("total (%s to %s): %w", window.Start, window.End, err)
	}

	return cmp, nil
}
