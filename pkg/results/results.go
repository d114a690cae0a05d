// Package results defines the per-commit benchmark result model: commits,
// benchmark groups, patches, runs and passes.
package results

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Sentinel errors for malformed records.
var (
	// ErrRunCount is returned when a patch does not hold exactly one run.
	ErrRunCount = errors.New("patch must contain exactly one run")
	// ErrEmptyBenchmarks is returned for a record with no benchmark groups.
	ErrEmptyBenchmarks = errors.New("empty benchmarks")
	// ErrMissingSHA is returned for a record without a commit SHA.
	ErrMissingSHA = errors.New("commit sha is required")
	// ErrMissingDate is returned for a record without a commit date.
	ErrMissingDate = errors.New("commit date is required")
)

// Pass is one measured phase of a benchmark run.
type Pass struct {
	Name string  `json:"name" yaml:"name"`
	Time float64 `json:"time" yaml:"time"`
	Mem  uint64  `json:"mem"  yaml:"mem"`
}

// Run is a named benchmark execution made of ordered passes.
type Run struct {
	Name   string `json:"name"   yaml:"name"`
	Passes []Pass `json:"passes" yaml:"passes"`
}

// Pass returns the first pass named name.
func (r Run) Pass(name string) (Pass, bool) {
	idx := slices.IndexFunc(r.Passes, func(p Pass) bool { return p.Name == name })
	if idx < 0 {
		return Pass{}, false
	}

	return r.Passes[idx], true
}

// Patch is a benchmark variant applied to a crate.
type Patch struct {
	Patch string `json:"patch" yaml:"patch"`
	Name  string `json:"name"  yaml:"name"`
	Runs  []Run  `json:"runs"  yaml:"runs"`
}

// FullName joins the crate name and the patch identifier. It is the key
// used to match patches across commits.
func (p Patch) FullName() string {
	return p.Name + p.Patch
}

// Run returns the single run of the patch.
func (p Patch) Run() (Run, error) {
	if len(p.Runs) != 1 {
		return Run{}, fmt.Errorf("%w: %s has %d", ErrRunCount, p.FullName(), len(p.Runs))
	}

	return p.Runs[0], nil
}

// Commit identifies a measured revision. Commits are ordered by date only,
// see CompareCommits.
type Commit struct {
	SHA  string `json:"sha"  yaml:"sha"`
	Date Date   `json:"date" yaml:"date"`
}

// CompareCommits orders commits by date alone. Two commits on the same date
// compare equal whatever their SHA.
func CompareCommits(a, b Commit) int {
	return a.Date.Compare(b.Date)
}

// CommitData holds every benchmark result measured for one commit, keyed by
// benchmark group name.
type CommitData struct {
	Commit     Commit             `json:"commit"     yaml:"commit"`
	Benchmarks map[string][]Patch `json:"benchmarks" yaml:"benchmarks"`
}

// Groups returns the benchmark group names in sorted order.
func (cd *CommitData) Groups() []string {
	return slices.Sorted(maps.Keys(cd.Benchmarks))
}

// Patches yields every patch of every group, groups in sorted order.
func (cd *CommitData) Patches() iter.Seq[Patch] {
	return func(yield func(Patch) bool) {
		for _, group := range cd.Groups() {
			for _, patch := range cd.Benchmarks[group] {
				if !yield(patch) {
					return
				}
			}
		}
	}
}

// Validate checks the invariants every ingested record must satisfy.
func (cd *CommitData) Validate() error {
	if cd.Commit.SHA == "" {
		return ErrMissingSHA
	}

	if cd.Commit.Date.IsZero() {
		return fmt.Errorf("%w: %s", ErrMissingDate, cd.Commit.SHA)
	}

	if len(cd.Benchmarks) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyBenchmarks, cd.Commit.SHA)
	}

	for patch := range cd.Patches() {
		_, err := patch.Run()
		if err != nil {
			return err
		}
	}

	return nil
}
