// Package service owns the loaded record store and its summary, and answers
// the queries the HTTP API, the MCP tools and the CLI share.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/loader"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// Sentinel errors.
var (
	// ErrNotLoaded is returned before the first successful Reload.
	ErrNotLoaded = errors.New("results not loaded yet")
	// ErrInvalidQuery is returned for malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")
)

// Snapshot is one immutable load of the results directory.
type Snapshot struct {
	Data     *store.InputData
	Summary  *summary.Summary
	Stats    loader.Stats
	LoadedAt time.Time
}

// Info describes the current snapshot.
type Info struct {
	store.Info `yaml:",inline"`

	Load     loader.Stats `json:"load"      yaml:"load"`
	LoadedAt time.Time    `json:"loaded_at" yaml:"loaded_at"`
}

// Query selects a summary. The zero Query returns the cached summary
// anchored at the last commit.
type Query struct {
	// Weeks overrides the number of weekly windows when positive.
	Weeks int
	// Reference anchors the windows at a date instead of the last commit.
	Reference string
}

// Options configures a Service.
type Options struct {
	DataDir string
	Summary summary.Options
}

// Deps holds collaborators of a Service. Nil fields use defaults.
type Deps struct {
	Loader  *loader.Loader
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.SummaryMetrics
	Now     func() time.Time
}

// Service serves queries from an atomically swapped Snapshot.
type Service struct {
	opts       Options
	deps       summary.Deps
	loader     *loader.Loader
	builder    *summary.Builder
	comparator *compare.Comparator
	logger     *slog.Logger
	now        func() time.Time

	reloadMu sync.Mutex
	current  atomic.Pointer[Snapshot]
}

// New validates opts and creates a Service with no snapshot.
func New(opts Options, deps Deps) (*Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	summaryDeps := summary.Deps{Logger: logger, Tracer: deps.Tracer, Metrics: deps.Metrics}

	builder, err := summary.NewBuilder(opts.Summary, summaryDeps)
	if err != nil {
		return nil, err
	}

	ld := deps.Loader
	if ld == nil {
		ld = loader.New(loader.Options{}, loader.Deps{Logger: logger, Tracer: deps.Tracer, Metrics: deps.Metrics})
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		opts:       opts,
		deps:       summaryDeps,
		loader:     ld,
		builder:    builder,
		comparator: compare.NewComparator(logger),
		logger:     logger,
		now:        now,
	}, nil
}

// Reload loads the results directory, builds the default summary and
// swaps the snapshot. On failure the previous snapshot stays in place.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	data, stats, err := s.loader.LoadStore(ctx, s.opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	sum, err := s.builder.BuildLatest(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}

	snap := &Snapshot{Data: data, Summary: sum, Stats: stats, LoadedAt: s.now()}
	s.current.Store(snap)

	return snap, nil
}

// Watch reloads every interval until ctx ends. Failed reloads are logged
// and keep the previous snapshot.
func (s *Service) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.Reload(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "reload failed, serving previous snapshot", "error", err)

				continue
			}

			s.logger.InfoContext(ctx, "reloaded results",
				"records", snap.Data.Len(), "reference", snap.Summary.Reference.String())
		}
	}
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}

	return snap, nil
}

// Ready reports ErrNotLoaded until a snapshot exists.
func (s *Service) Ready(_ context.Context) error {
	_, err := s.Snapshot()

	return err
}

// Summary answers q from the current snapshot.
func (s *Service) Summary(ctx context.Context, q Query) (*summary.Summary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	if q.Weeks < 0 {
		return nil, fmt.Errorf("%w: weeks must be positive, got %d", ErrInvalidQuery, q.Weeks)
	}

	if q.Weeks == 0 && q.Reference == "" {
		return snap.Summary, nil
	}

	builder := s.builder

	if q.Weeks > 0 && q.Weeks != s.opts.Summary.Weeks {
		opts := s.opts.Summary
		opts.Weeks = q.Weeks

		builder, err = summary.NewBuilder(opts, s.deps)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}

	reference := snap.Data.LastDate()

	if q.Reference != "" {
		reference, err = results.ParseDate(q.Reference)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}

	return builder.Build(ctx, snap.Data, reference)
}

// Compare compares the commits whose SHAs start with a and b.
func (s *Service) Compare(ctx context.Context, a, b string) (*compare.Comparison, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both commits are required", ErrInvalidQuery)
	}

	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	before, err := snap.Data.Lookup(a)
	if err != nil {
		return nil, err
	}

	after, err := snap.Data.Lookup(b)
	if err != nil {
		return nil, err
	}

	return s.comparator.Compare(ctx, before, after)
}

// Info describes the current snapshot.
func (s *Service) Info() (Info, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Info{}, err
	}

	return Info{Info: snap.Data.Info(), Load: snap.Stats, LoadedAt: snap.LoadedAt}, nil
}
