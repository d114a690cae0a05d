package report

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// DefaultDigestTop is the number of changes a digest lists in each direction.
const DefaultDigestTop = 5

// Change is one run/phase percent change.
type Change struct {
	Run     string          `json:"run"`
	Phase   string          `json:"phase"`
	Delta   float64         `json:"delta"`
	Percent compare.Percent `json:"percent"`
}

// Changes lists every run/phase of cmp with a defined percent change,
// largest absolute change first. Ties keep run then phase order.
func Changes(c *compare.Comparison) []Change {
	var changes []Change

	for _, run := range c.Runs() {
		for _, phase := range c.Phases(run) {
			pct, ok := c.Percent(run, phase)
			if !ok {
				continue
			}

			delta, _ := c.Delta(run, phase)
			changes = append(changes, Change{Run: run, Phase: phase, Delta: delta, Percent: pct})
		}
	}

	slices.SortStableFunc(changes, func(a, b Change) int {
		return cmp.Compare(math.Abs(float64(b.Percent)), math.Abs(float64(a.Percent)))
	})

	return changes
}

// Digest formats a short Slack-flavoured markdown message: the total
// window's largest regressions and improvements plus one line per week.
func Digest(sum *summary.Summary, top int) string {
	if top <= 0 {
		top = DefaultDigestTop
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "*Performance summary* as of %s\n", sum.Reference)
	fmt.Fprintf(&sb, "Total `%s` -> `%s` (%s to %s)\n",
		shortSHA(sum.Total.A.SHA), shortSHA(sum.Total.B.SHA), sum.Total.A.Date, sum.Total.B.Date)

	var regressions, improvements []Change

	for _, change := range Changes(&sum.Total) {
		switch {
		case change.Delta > 0 && len(regressions) < top:
			regressions = append(regressions, change)
		case change.Delta < 0 && len(improvements) < top:
			improvements = append(improvements, change)
		}
	}

	writeChanges(&sb, "Regressions", regressions)
	writeChanges(&sb, "Improvements", improvements)

	if len(sum.Comparisons) > 0 {
		sb.WriteString("Weekly:\n")

		for i := range sum.Comparisons {
			week := &sum.Comparisons[i]

			changes := Changes(&week.Comparison)

			headline := "no change"
			if len(changes) > 0 {
				headline = fmt.Sprintf("largest %s/%s %s", changes[0].Run, changes[0].Phase, changes[0].Percent)
			}

			fmt.Fprintf(&sb, "• week of %s: %s\n", week.Start, headline)
		}
	}

	if len(sum.Omitted) > 0 {
		fmt.Fprintf(&sb, "_%d of %d weeks had fewer than two commits_\n",
			len(sum.Omitted), len(sum.Omitted)+len(sum.Comparisons))
	}

	return sb.String()
}

func writeChanges(sb *strings.Builder, title string, changes []Change) {
	if len(changes) == 0 {
		return
	}

	fmt.Fprintf(sb, "%s:\n", title)

	for _, change := range changes {
		fmt.Fprintf(sb, "• %s/%s %s (%+.3fs)\n", change.Run, change.Phase, change.Percent, change.Delta)
	}
}
