package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/mcp"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/version"
)

func newMCPCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the loaded results as tools:
  - perf_summary: weekly and total comparisons (optional weeks, reference)
  - perf_compare: compare two commits by SHA or prefix
  - perf_info: commit count, date span, crates and phases

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := global.setup(cmd, observability.ModeMCP, nil)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			red, err := observability.NewREDMetrics(rt.providers.Meter, observability.TransportMCP)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Service: rt.svc,
				Version: version.Version,
				Logger:  rt.logger,
				Metrics: red,
				Tracer:  rt.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}
}
