// Package compare pairs the benchmark results of two commits and computes
// per-run, per-phase time deltas.
package compare

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// percentScale converts a ratio to a percentage.
const percentScale = 100

// Percent is a percentage rounded to one decimal place when serialized.
type Percent float64

// PercentChange returns delta relative to base. It reports false when base is zero.
func PercentChange(delta, base float64) (Percent, bool) {
	if base == 0 {
		return 0, false
	}

	return Percent(delta / base * percentScale), true
}

// Rounded returns the value rounded to one decimal place.
func (p Percent) Rounded() float64 {
	return math.Round(float64(p)*10) / 10
}

// String formats the percentage with an explicit sign, e.g. "+2.5%".
func (p Percent) String() string {
	return fmt.Sprintf("%+.1f%%", p.Rounded())
}

// MarshalJSON encodes the rounded value.
func (p Percent) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(p.Rounded())
	if err != nil {
		return nil, fmt.Errorf("marshal percent: %w", err)
	}

	return data, nil
}

// MarshalYAML encodes the rounded value.
func (p Percent) MarshalYAML() (any, error) {
	return p.Rounded(), nil
}

// Comparison holds the deltas between commit A (before) and commit B (after).
type Comparison struct {
	A results.Commit `json:"a" yaml:"a"`
	B results.Commit `json:"b" yaml:"b"`

	// ByCrate maps run names to phase names to B's time minus A's time.
	ByCrate map[string]map[string]float64 `json:"by_crate" yaml:"by_crate"`

	// Base maps run names to phase names to A's time.
	Base map[string]map[string]float64 `json:"base,omitempty" yaml:"base,omitempty"`

	// Skipped lists the benchmark groups of A that B did not contain.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Delta returns the recorded delta for run/phase.
func (c *Comparison) Delta(run, phase string) (float64, bool) {
	delta, ok := c.ByCrate[run][phase]

	return delta, ok
}

// Percent returns the delta for run/phase relative to A's time.
func (c *Comparison) Percent(run, phase string) (Percent, bool) {
	delta, ok := c.Delta(run, phase)
	if !ok {
		return 0, false
	}

	return PercentChange(delta, c.Base[run][phase])
}

// Runs returns the compared run names, sorted.
func (c *Comparison) Runs() []string {
	return slices.Sorted(maps.Keys(c.ByCrate))
}

// Phases returns the phase names recorded for run, sorted.
func (c *Comparison) Phases(run string) []string {
	return slices.Sorted(maps.Keys(c.ByCrate[run]))
}

// TotalDelta sums the deltas of one phase across every run.
func (c *Comparison) TotalDelta(phase string) float64 {
	var sum float64

	for _, phases := range c.ByCrate {
		sum += phases[phase]
	}

	return sum
}
