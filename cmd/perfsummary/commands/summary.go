package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/notify"
	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/persist"
	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// snapshotBasename names the files written by --save-dir.
const snapshotBasename = "summary"

type summaryOptions struct {
	format       string
	output       string
	reference    string
	weeks        int
	phases       []string
	color        bool
	notify       bool
	saveDir      string
	fromSnapshot string
}

func newSummaryCommand(global *globalOptions) *cobra.Command {
	opts := &summaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the trailing weeks of benchmark results",
		Long: `Load every result file, compare the first and last commit of each
trailing week, and compare the first and last commit of the long-range
total window. Weeks with fewer than two commits are reported as omitted.

Examples:
  perfsummary summary -d ./results
  perfsummary summary --weeks 4 --format html -o summary.html
  perfsummary summary --reference 2024-03-01 --notify
  perfsummary summary --save-dir ./snapshots
  perfsummary summary --from-snapshot ./snapshots/summary.json.lz4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd, global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", string(report.FormatText), "output format: text, json, yaml or html")
	flags.StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	flags.StringVar(&opts.reference, "reference", "", "anchor date YYYY-MM-DD (default: the last commit)")
	flags.IntVar(&opts.weeks, "weeks", 0, "number of weekly windows, at most 1040 (default: summary.weeks)")
	flags.StringSliceVar(&opts.phases, "phase", nil, "only show these phases in text and html output")
	flags.BoolVar(&opts.color, "color", false, "colour text output")
	flags.BoolVar(&opts.notify, "notify", false, "post a digest to the configured Slack webhook")
	flags.StringVar(&opts.saveDir, "save-dir", "", "also save the summary as JSON, YAML and LZ4 snapshots in this directory")
	flags.StringVar(&opts.fromSnapshot, "from-snapshot", "", "render a saved snapshot instead of loading results")

	return cmd
}

func runSummary(cmd *cobra.Command, global *globalOptions, opts *summaryOptions) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	rt, err := global.setup(cmd, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	ctx := cmd.Context()

	sum, err := resolveSummary(ctx, rt, opts)
	if err != nil {
		return err
	}

	if opts.saveDir != "" {
		paths, saveErr := snapshotPersister().Save(opts.saveDir, sum)
		if saveErr != nil {
			return fmt.Errorf("save snapshot: %w", saveErr)
		}

		rt.logger.InfoContext(ctx, "saved summary snapshots", "paths", paths)
	}

	renderer := report.New(report.Options{Color: opts.color, Phases: opts.phases})

	err = writeOutput(cmd.OutOrStdout(), opts.output, func(w io.Writer) error {
		return renderer.Summary(w, sum, format)
	})
	if err != nil {
		return err
	}

	if opts.notify {
		return sendDigest(ctx, rt, sum)
	}

	return nil
}

func resolveSummary(ctx context.Context, rt *env, opts *summaryOptions) (*summary.Summary, error) {
	if opts.fromSnapshot != "" {
		sum, err := persist.Open[summary.Summary](opts.fromSnapshot)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}

		return sum, nil
	}

	_, err := rt.svc.Reload(ctx)
	if err != nil {
		return nil, err
	}

	return rt.svc.Summary(ctx, service.Query{Weeks: opts.weeks, Reference: opts.reference})
}

func snapshotPersister() *persist.Persister[summary.Summary] {
	return persist.NewPersister[summary.Summary](snapshotBasename,
		persist.NewJSONCodec(),
		persist.NewYAMLCodec(),
		persist.NewLZ4Codec(persist.NewJSONCodec()),
	)
}

func sendDigest(ctx context.Context, rt *env, sum *summary.Summary) error {
	slackCfg := rt.cfg.Notify.Slack

	notifier, err := notify.New(notify.Options{
		WebhookURL: slackCfg.WebhookURL,
		Channel:    slackCfg.Channel,
		Username:   slackCfg.Username,
	}, rt.logger)
	if err != nil {
		return err
	}

	return notifier.Send(ctx, sum)
}

// writeOutput runs fn against path, or against stdout when path is empty.
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = fn(file)
	if err != nil {
		_ = file.Close()

		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
