package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/server"
)

const meterName = "perfsummary"

func newServeCommand(global *globalOptions) *cobra.Command {
	var (
		addr   string
		reload time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the summary over HTTP",
		Long: `Load the results once and serve them over HTTP:

  GET  /api/summary?weeks=&reference=&format=
  GET  /api/compare?a=&b=&format=
  GET  /api/info
  POST /api/reload
  GET  /healthz, /readyz, /metrics

With --reload the results directory is re-read periodically and the
served snapshot is swapped atomically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			meterProvider, metricsHandler, err := observability.NewPrometheusProvider()
			if err != nil {
				return err
			}

			meter := meterProvider.Meter(meterName)

			rt, err := global.setup(cmd, observability.ModeServe, meter)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			red, err := observability.NewREDMetrics(meter, observability.TransportHTTP)
			if err != nil {
				return err
			}

			srvCfg := rt.cfg.Server
			if addr == "" {
				addr = srvCfg.Addr()
			}

			if !cmd.Flags().Changed("reload") {
				reload = srvCfg.ReloadInterval
			}

			srv := server.New(server.Options{
				Addr:           addr,
				ReadTimeout:    srvCfg.ReadTimeout,
				WriteTimeout:   srvCfg.WriteTimeout,
				IdleTimeout:    srvCfg.IdleTimeout,
				ReloadInterval: reload,
			}, server.Deps{
				Service: rt.svc,
				Logger:  rt.logger,
				Tracer:  rt.providers.Tracer,
				RED:     red,
				Metrics: metricsHandler,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.host:server.port)")
	cmd.Flags().DurationVar(&reload, "reload", 0, "re-read the results directory at this interval (0 disables)")

	return cmd
}
