// Package server exposes the summary service over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// Server timeout defaults.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

const tracerName = "perfsummary"

// Options configures a Server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// ReloadInterval re-reads the results directory periodically when positive.
	ReloadInterval time.Duration
}

// Deps holds collaborators of a Server. Service is required.
type Deps struct {
	Service *service.Service
	Logger  *slog.Logger
	Tracer  trace.Tracer
	RED     *observability.REDMetrics
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Server is the HTTP API.
type Server struct {
	opts     Options
	svc      *service.Service
	logger   *slog.Logger
	tracer   trace.Tracer
	red      *observability.REDMetrics
	metrics  http.Handler
	renderer *report.Renderer
}

type errorBody struct {
	Error string `json:"error"`
}

// New creates a Server.
func New(opts Options, deps Deps) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Server{
		opts:     opts,
		svc:      deps.Service,
		logger:   logger,
		tracer:   tracer,
		red:      deps.RED,
		metrics:  deps.Metrics,
		renderer: report.New(report.Options{}),
	}
}

// Handler returns the routed API wrapped in tracing and RED middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(s.svc.Ready))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return observability.HTTPMiddleware(s.tracer, s.red, mux)
}

// Run loads the results, then serves until ctx ends and shuts down
// gracefully. A failed initial load is fatal.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	snap, err := s.svc.Reload(ctx)
	if err != nil {
		_ = listener.Close()

		return err
	}

	s.logger.InfoContext(ctx, "serving summary",
		"addr", listener.Addr().String(),
		"records", snap.Data.Len(),
		"reference", snap.Summary.Reference.String())

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), s.opts.ShutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("shutdown http: %w", shutdownErr)
		}

		return nil
	})

	if s.opts.ReloadInterval > 0 {
		group.Go(func() error {
			s.svc.Watch(gctx, s.opts.ReloadInterval)

			return nil
		})
	}

	return group.Wait()
}

func (s *Server) handleSummary(rw http.ResponseWriter, hr *http.Request) {
	query := service.Query{Reference: hr.URL.Query().Get("reference")}

	if raw := hr.URL.Query().Get("weeks"); raw != "" {
		weeks, err := strconv.Atoi(raw)
		if err != nil || weeks <= 0 {
			s.writeError(hr.Context(), rw, fmt.Errorf("%w: weeks %q", service.ErrInvalidQuery, raw))

			return
		}

		query.Weeks = weeks
	}

	format, ok := s.format(rw, hr)
	if !ok {
		return
	}

	sum, err := s.svc.Summary(hr.Context(), query)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	s.render(hr.Context(), rw, format, func(buf *bytes.Buffer) error {
		return s.renderer.Summary(buf, sum, format)
	})
}

func (s *Server) handleCompare(rw http.ResponseWriter, hr *http.Request) {
	format, ok := s.format(rw, hr)
	if !ok {
		return
	}

	cmp, err := s.svc.Compare(hr.Context(), hr.URL.Query().Get("a"), hr.URL.Query().Get("b"))
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	s.render(hr.Context(), rw, format, func(buf *bytes.Buffer) error {
		return s.renderer.Comparison(buf, cmp, format)
	})
}

func (s *Server) handleInfo(rw http.ResponseWriter, hr *http.Request) {
	info, err := s.svc.Info()
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, info)
}

func (s *Server) handleReload(rw http.ResponseWriter, hr *http.Request) {
	_, err := s.svc.Reload(hr.Context())
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	info, err := s.svc.Info()
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, info)
}

// format reads the optional format parameter, defaulting to JSON.
func (s *Server) format(rw http.ResponseWriter, hr *http.Request) (report.Format, bool) {
	raw := hr.URL.Query().Get("format")
	if raw == "" {
		return report.FormatJSON, true
	}

	format, err := report.ParseFormat(raw)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return "", false
	}

	return format, true
}

// render buffers the whole body so a render failure can still become a 500.
func (s *Server) render(ctx context.Context, rw http.ResponseWriter, format report.Format, fn func(*bytes.Buffer) error) {
	var buf bytes.Buffer

	err := fn(&buf)
	if err != nil {
		s.writeError(ctx, rw, err)

		return
	}

	rw.Header().Set("Content-Type", contentType(format))
	rw.WriteHeader(http.StatusOK)

	_, err = rw.Write(buf.Bytes())
	if err != nil {
		s.logger.WarnContext(ctx, "failed to write response", "error", err)
	}
}

func contentType(format report.Format) string {
	switch format {
	case report.FormatHTML:
		return "text/html; charset=utf-8"
	case report.FormatYAML:
		return "application/yaml"
	case report.FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, store.ErrAmbiguousCommit),
		errors.Is(err, report.ErrUnknownFormat),
		errors.Is(err, report.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrCommitNotFound),
		errors.Is(err, summary.ErrNoTotalRange):
		return http.StatusNotFound
	case errors.Is(err, compare.ErrPatchCount),
		errors.Is(err, compare.ErrRunMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, rw http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "error", err)
	}

	writeJSON(ctx, rw, code, errorBody{Error: err.Error()})
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, code int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	err := json.NewEncoder(rw).Encode(value)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}
