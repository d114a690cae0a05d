// Package commands implements CLI command handlers for perfsummary.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/perfsummary/pkg/config"
	"github.com/Sumatoshi-tech/perfsummary/pkg/loader"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/version"
)

// dotEnvFile is loaded from the working directory before the config.
const dotEnvFile = ".env"

// ExitError carries a process exit code for errors already reported to the user.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dataDir    string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the perfsummary command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "perfsummary",
		Short: "Weekly performance summaries of per-commit benchmark results",
		Long: `perfsummary reads one benchmark result file per commit from
<data-dir>/times and reports how compile times moved week over week.

Commands:
  summary   Weekly and long-range comparisons
  compare   Compare two commits
  info      Describe the loaded results
  validate  Check result files against the schema
  serve     HTTP API
  mcp       MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: ./perfsummary.yaml if present)")
	flags.StringVarP(&opts.dataDir, "data-dir", "d", "", "results directory containing times/ (overrides data.dir)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(
		newSummaryCommand(opts),
		newCompareCommand(opts),
		newInfoCommand(opts),
		newValidateCommand(opts),
		newServeCommand(opts),
		newMCPCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// loadConfig reads .env, the config file and the environment, then applies
// the persistent flags on top.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	err := config.LoadDotEnv(dotEnvFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	if g.dataDir != "" {
		cfg.Data.Dir = g.dataDir
	}

	switch {
	case g.verbose:
		cfg.Logging.Level = "debug"
	case g.quiet:
		cfg.Logging.Level = "error"
	}

	return cfg, nil
}

// env bundles what every data-reading command needs.
type env struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	metrics   *observability.SummaryMetrics
	svc       *service.Service
}

// setup loads the config, initializes observability and creates the service.
// Metrics go to meter when non-nil, else to the OTLP meter. The caller must
// call close.
func (g *globalOptions) setup(cmd *cobra.Command, mode observability.AppMode, meter metric.Meter) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	obsCfg := cfg.Observability(mode, version.Version)
	obsCfg.LogWriter = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	rt := &env{cfg: cfg, providers: providers, logger: providers.Logger}

	if meter == nil {
		meter = providers.Meter
	}

	rt.metrics, err = observability.NewSummaryMetrics(meter)
	if err != nil {
		rt.close(cmd.Context())

		return nil, fmt.Errorf("register summary metrics: %w", err)
	}

	rt.svc, err = rt.newService(providers.Tracer)
	if err != nil {
		rt.close(cmd.Context())

		return nil, err
	}

	return rt, nil
}

func (rt *env) newService(tracer trace.Tracer) (*service.Service, error) {
	opts, err := rt.cfg.SummaryOptions()
	if err != nil {
		return nil, err
	}

	ld := loader.New(loader.Options{
		Workers:        rt.cfg.Workers(),
		ValidateSchema: rt.cfg.Data.ValidateSchema,
	}, loader.Deps{Logger: rt.logger, Tracer: tracer, Metrics: rt.metrics})

	return service.New(service.Options{DataDir: rt.cfg.Data.Dir, Summary: opts}, service.Deps{
		Loader:  ld,
		Logger:  rt.logger,
		Tracer:  tracer,
		Metrics: rt.metrics,
	})
}

func (rt *env) close(ctx context.Context) {
	err := rt.providers.Shutdown(context.WithoutCancel(ctx))
	if err != nil {
		rt.logger.Warn("observability shutdown failed", "error", err)
	}
}
