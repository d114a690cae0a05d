package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
)

const compareArgs = 2

func newCompareCommand(global *globalOptions) *cobra.Command {
	var (
		format string
		output string
		color  bool
	)

	cmd := &cobra.Command{
		Use:   "compare <sha-a> <sha-b>",
		Short: "Compare the results of two commits",
		Long: `Compare two stored commits given by full SHA or unique prefix.
Deltas are the second commit's time minus the first's, per crate and phase.`,
		Args: cobra.ExactArgs(compareArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			rt, err := global.setup(cmd, observability.ModeCLI, nil)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			_, err = rt.svc.Reload(cmd.Context())
			if err != nil {
				return err
			}

			cmp, err := rt.svc.Compare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			renderer := report.New(report.Options{Color: color})

			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return renderer.Comparison(w, cmp, parsed)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json, yaml or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&color, "color", false, "colour text output")

	return cmd
}
