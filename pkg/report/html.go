package report

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/perfsummary/pkg/compare"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"
	lineWidth   = 2
)

func initOpts() opts.Initialization {
	return opts.Initialization{Width: chartWidth, Height: chartHeight}
}

// phasesOf collects the phases present in any comparison, filtered by Options.Phases.
func (r *Renderer) phasesOf(cmps ...*compare.Comparison) []string {
	seen := make(map[string]struct{})

	for _, cmp := range cmps {
		for _, run := range cmp.Runs() {
			for _, phase := range cmp.Phases(run) {
				if r.wantPhase(phase) {
					seen[phase] = struct{}{}
				}
			}
		}
	}

	phases := make([]string, 0, len(seen))
	for phase := range seen {
		phases = append(phases, phase)
	}

	slices.Sort(phases)

	return phases
}

// weeklyLine plots the summed delta of each phase per week, oldest first.
func (r *Renderer) weeklyLine(sum *summary.Summary) *charts.Line {
	weeks := slices.Clone(sum.Comparisons)
	slices.Reverse(weeks)

	cmps := make([]*compare.Comparison, len(weeks))
	labels := make([]string, len(weeks))

	for i := range weeks {
		cmps[i] = &weeks[i].Comparison
		labels[i] = weeks[i].Start.String()
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{
			Title:    "Weekly change",
			Subtitle: "Summed time delta per phase across all crates (seconds)",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Week starting"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Delta (s)"}),
	)
	line.SetXAxis(labels)

	for _, phase := range r.phasesOf(cmps...) {
		points := make([]opts.LineData, len(cmps))
		for i, cmp := range cmps {
			points[i] = opts.LineData{Value: round3(cmp.TotalDelta(phase))}
		}

		line.AddSeries(phase, points, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))
	}

	return line
}

// crateBar plots the per-crate percent change of each phase in one comparison.
func (r *Renderer) crateBar(title string, cmp *compare.Comparison) *charts.Bar {
	runs := cmp.Runs()

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts()),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%s -> %s, percent change per crate", commitLabel(cmp.A), commitLabel(cmp.B)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Change (%)"}),
	)
	bar.SetXAxis(runs)

	for _, phase := range r.phasesOf(cmp) {
		points := make([]opts.BarData, len(runs))

		for i, run := range runs {
			pct, ok := cmp.Percent(run, phase)
			if !ok {
				points[i] = opts.BarData{Value: "-"}

				continue
			}

			points[i] = opts.BarData{Value: pct.Rounded()}
		}

		bar.AddSeries(phase, points)
	}

	return bar
}

func (r *Renderer) summaryHTML(w io.Writer, sum *summary.Summary) error {
	page := components.NewPage()
	page.PageTitle = "Performance summary " + sum.Reference.String()

	page.AddCharts(
		r.weeklyLine(sum),
		r.crateBar(fmt.Sprintf("Total [%s, %s)", sum.TotalWindow.Start, sum.TotalWindow.End), &sum.Total),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	return nil
}

func (r *Renderer) comparisonHTML(w io.Writer, cmp *compare.Comparison) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Comparison %s -> %s", shortSHA(cmp.A.SHA), shortSHA(cmp.B.SHA))
	page.AddCharts(r.crateBar("Comparison", cmp))

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
