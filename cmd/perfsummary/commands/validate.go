package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/perfsummary/pkg/loader"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// exitCodeValidationFailure is the exit code when any file fails validation.
const exitCodeValidationFailure = 2

type validatePalette struct {
	ok, fail, detail *color.Color
}

func newValidatePalette(enabled bool) validatePalette {
	palette := validatePalette{
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		detail: color.New(color.FgYellow),
	}

	for _, c := range []*color.Color{palette.ok, palette.fail, palette.detail} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return palette
}

func newValidateCommand(global *globalOptions) *cobra.Command {
	var colorize bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate result files against the result schema",
		Long: `Validate result files (.json or .json.lz4) against the embedded
JSON schema and the record invariants the loader enforces.

Exits with status 2 when any file is invalid.

Examples:
  perfsummary validate results/times/*.json
  perfsummary validate --color results/times/abc123.json.lz4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valid := runValidate(cmd.OutOrStdout(), args, newValidatePalette(colorize), global.quiet)
			if valid < len(args) {
				return &ExitError{Code: exitCodeValidationFailure}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&colorize, "color", false, "colour the output")

	return cmd
}

// runValidate reports on every path and returns how many were valid.
func runValidate(w io.Writer, paths []string, palette validatePalette, quiet bool) int {
	valid := 0

	for _, path := range paths {
		problems := validateFile(path)
		if len(problems) == 0 {
			valid++

			if !quiet {
				palette.ok.Fprintf(w, "PASS %s\n", path)
			}

			continue
		}

		palette.fail.Fprintf(w, "FAIL %s\n", path)

		for _, problem := range problems {
			palette.detail.Fprintf(w, "  - %s\n", problem)
		}
	}

	if !quiet {
		fmt.Fprintf(w, "%d of %d files valid\n", valid, len(paths))
	}

	return valid
}

// validateFile returns human-readable problems; none means the file is valid.
func validateFile(path string) []string {
	raw, err := loader.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}

	violations, err := loader.ValidateDocument(raw)
	if err != nil {
		return []string{err.Error()}
	}

	if len(violations) > 0 {
		problems := make([]string, len(violations))
		for i, violation := range violations {
			problems[i] = violation.String()
		}

		return problems
	}

	var record results.CommitData

	err = json.Unmarshal(raw, &record)
	if err != nil {
		return []string{err.Error()}
	}

	err = record.Validate()
	if err != nil {
		return []string{err.Error()}
	}

	return nil
}
