package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

const notAvailable = "n/a"

func (r *Renderer) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if r.opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	return c.Sprint(s)
}

// deltaCell colours a slowdown red and a speedup green.
func (r *Renderer) deltaCell(s string, delta float64) string {
	switch {
	case delta > 0:
		return r.paint(color.FgRed, s)
	case delta < 0:
		return r.paint(color.FgGreen, s)
	default:
		return s
	}
}

func (r *Renderer) relative(date results.Date) string {
	return humanize.RelTime(date.Time(), r.opts.Now(), "ago", "from now")
}

func commitLabel(c results.Commit) string {
	return fmt.Sprintf("%s (%s)", shortSHA(c.SHA), c.Date)
}

func shortSHA(sha string) string {
	const shortLen = 10
	if len(sha) > shortLen {
		return sha[:shortLen]
	}

	return sha
}

func (r *Renderer) comparisonTable(cmp *compare.Comparison) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"Crate", "Phase", "Before (s)", "After (s)", "Delta (s)", "Change"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	rows := 0

	for _, run := range cmp.Runs() {
		for _, phase := range cmp.Phases(run) {
			if !r.wantPhase(phase) {
				continue
			}

			delta, _ := cmp.Delta(run, phase)
			before := cmp.Base[run][phase]

			change := notAvailable
			if pct, ok := cmp.Percent(run, phase); ok {
				change = pct.String()
			}

			tbl.AppendRow(table.Row{
				run,
				phase,
				strconv.FormatFloat(before, 'f', 3, 64),
				strconv.FormatFloat(before+delta, 'f', 3, 64),
				r.deltaCell(fmt.Sprintf("%+.3f", delta), delta),
				r.deltaCell(change, delta),
			})

			rows++
		}
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "", humanize.Comma(int64(rows)) + " rows"})

	return tbl.Render()
}

func (r *Renderer) writeComparison(sb *strings.Builder, cmp *compare.Comparison) {
	fmt.Fprintf(sb, "%s -> %s\n", commitLabel(cmp.A), commitLabel(cmp.B))

	if len(cmp.Skipped) > 0 {
		sb.WriteString(r.paint(color.FgYellow,
			fmt.Sprintf("skipped groups missing from %s: %s", shortSHA(cmp.B.SHA), strings.Join(cmp.Skipped, ", "))))
		sb.WriteString("\n")
	}

	sb.WriteString(r.comparisonTable(cmp))
	sb.WriteString("\n")
}

func (r *Renderer) summaryText(w io.Writer, sum *summary.Summary) error {
	var sb strings.Builder

	sb.WriteString(r.paint(color.Bold, fmt.Sprintf("Performance summary as of %s (%s)",
		sum.Reference, r.relative(sum.Reference))))
	sb.WriteString("\n\n")

	sb.WriteString(r.paint(color.FgCyan, fmt.Sprintf("Total [%s, %s)", sum.TotalWindow.Start, sum.TotalWindow.End)))
	sb.WriteString("\n")
	r.writeComparison(&sb, &sum.Total)

	for i := range sum.Comparisons {
		week := &sum.Comparisons[i]

		sb.WriteString("\n")
		sb.WriteString(r.paint(color.FgCyan, fmt.Sprintf("Week %d [%s, %s)", week.Index, week.Start, week.End)))
		sb.WriteString("\n")
		r.writeComparison(&sb, &week.Comparison)
	}

	if len(sum.Omitted) > 0 {
		indices := make([]string, 0, len(sum.Omitted))
		for _, window := range sum.Omitted {
			indices = append(indices, strconv.Itoa(window.Index))
		}

		sb.WriteString("\n")
		sb.WriteString(r.paint(color.FgYellow, fmt.Sprintf("%s without enough commits: %s",
			english.Plural(len(sum.Omitted), "week", "weeks"), strings.Join(indices, ", "))))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func (r *Renderer) comparisonText(w io.Writer, cmp *compare.Comparison) error {
	var sb strings.Builder

	r.writeComparison(&sb, cmp)

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}

	return nil
}

func (r *Renderer) infoText(w io.Writer, info store.Info) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendRows([]table.Row{
		{"Commits", humanize.Comma(int64(info.Records))},
		{"Collapsed duplicates", humanize.Comma(int64(info.Collapsed))},
		{"First commit", fmt.Sprintf("%s (%s)", info.FirstDate, r.relative(info.FirstDate))},
		{"Last commit", fmt.Sprintf("%s (%s)", info.LastDate, r.relative(info.LastDate))},
		{"Crates", fmt.Sprintf("%d: %s", len(info.Crates), strings.Join(info.Crates, ", "))},
		{"Phases", fmt.Sprintf("%d: %s", len(info.Phases), strings.Join(info.Phases, ", "))},
	})

	_, err := io.WriteString(w, tbl.Render()+"\n")
	if err != nil {
		return fmt.Errorf("write info: %w", err)
	}

	return nil
}
