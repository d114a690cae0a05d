package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// Sentinel errors for structurally inconsistent snapshots.
var (
	// ErrPatchCount is returned when a group holds a different number of patches in A and B.
	ErrPatchCount = errors.New("patch count mismatch")
	// ErrRunMismatch is returned when positionally paired patches carry different run names.
	ErrRunMismatch = errors.New("run name mismatch")
)

// Comparator computes Comparisons between two commits.
type Comparator struct {
	logger *slog.Logger
}

// NewComparator creates a Comparator. A nil logger falls back to slog.Default().
func NewComparator(logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Comparator{logger: logger}
}

// Compare walks every benchmark group of a. Groups missing from b are
// skipped with a warning. Patches are paired by position, and a phase that
// b does not report counts as time 0.0 in b. Later writes to the same
// run/phase overwrite earlier ones.
func (c *Comparator) Compare(ctx context.Context, a, b *results.CommitData) (*Comparison, error) {
	cmp := &Comparison{
		A:       a.Commit,
		B:       b.Commit,
		ByCrate: make(map[string]map[string]float64),
		Base:    make(map[string]map[string]float64),
	}

	for _, group := range a.Groups() {
		aPatches := a.Benchmarks[group]

		bPatches, ok := b.Benchmarks[group]
		if !ok {
			c.logger.WarnContext(ctx, "benchmark group missing from later commit",
				"a", a.Commit.SHA, "b", b.Commit.SHA, "group", group)

			cmp.Skipped = append(cmp.Skipped, group)

			continue
		}

		if len(aPatches) != len(bPatches) {
			return nil, fmt.Errorf("%w: group %s has %d patches in %s and %d in %s",
				ErrPatchCount, group, len(aPatches), a.Commit.SHA, len(bPatches), b.Commit.SHA)
		}

		for i := range aPatches {
			err := cmp.addPatch(aPatches[i], bPatches[i])
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", group, err)
			}
		}
	}

	return cmp, nil
}

func (cmp *Comparison) addPatch(aPatch, bPatch results.Patch) error {
	aRun, err := aPatch.Run()
	if err != nil {
		return err
	}

	bRun, err := bPatch.Run()
	if err != nil {
		return err
	}

	if aRun.Name != bRun.Name {
		return fmt.Errorf("%w: %q vs %q", ErrRunMismatch, aRun.Name, bRun.Name)
	}

	deltas := cmp.ByCrate[aRun.Name]
	if deltas == nil {
		deltas = make(map[string]float64, len(aRun.Passes))
		cmp.ByCrate[aRun.Name] = deltas
		cmp.Base[aRun.Name] = make(map[string]float64, len(aRun.Passes))
	}

	for _, aPass := range aRun.Passes {
		var bTime float64
		if bPass, found := bRun.Pass(aPass.Name); found {
			bTime = bPass.Time
		}

		deltas[aPass.Name] = bTime - aPass.Time
		cmp.Base[aRun.Name][aPass.Name] = aPass.Time
	}

	return nil
}
