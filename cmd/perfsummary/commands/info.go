package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/version"
)

func newInfoCommand(global *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the loaded results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			rt, err := global.setup(cmd, observability.ModeCLI, nil)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			snap, err := rt.svc.Reload(cmd.Context())
			if err != nil {
				return err
			}

			return report.New(report.Options{}).Info(cmd.OutOrStdout(), snap.Data.Info(), parsed)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json or yaml")

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "perfsummary %s\n", version.String())
		},
	}
}
