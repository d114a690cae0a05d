// Package store holds the loaded benchmark records ordered by commit date,
// together with the indices derived from them, and answers date range queries.
package store

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// Sentinel errors.
var (
	// ErrNoDates is returned when a store is built from an empty batch.
	ErrNoDates = errors.New("no dates found")
	// ErrCommitNotFound is returned when a SHA matches no stored commit.
	ErrCommitNotFound = errors.New("commit not found")
	// ErrAmbiguousCommit is returned when a SHA prefix matches several commits.
	ErrAmbiguousCommit = errors.New("ambiguous commit prefix")
)

// InputData is the immutable record store. Records are sorted ascending by
// results.CompareCommits; the derived sets are computed once in New.
type InputData struct {
	records   []*results.CommitData
	crateList []string
	phaseList []string
	lastDate  results.Date
	collapsed int
}

// New builds a store from an unordered batch. Records whose commits compare
// equal collapse into one entry that keeps the first commit and the last data,
// the same as inserting into an ordered map.
func New(batch []results.CommitData) (*InputData, error) {
	if len(batch) == 0 {
		return nil, ErrNoDates
	}

	owned := slices.Clone(batch)

	sorted := make([]*results.CommitData, len(owned))
	for i := range owned {
		sorted[i] = &owned[i]
	}

	slices.SortStableFunc(sorted, func(a, b *results.CommitData) int {
		return results.CompareCommits(a.Commit, b.Commit)
	})

	records := make([]*results.CommitData, 0, len(sorted))
	collapsed := 0

	for _, rec := range sorted {
		last := len(records) - 1
		if last >= 0 && results.CompareCommits(records[last].Commit, rec.Commit) == 0 {
			records[last] = &results.CommitData{Commit: records[last].Commit, Benchmarks: rec.Benchmarks}
			collapsed++

			continue
		}

		records = append(records, rec)
	}

	crates := make(map[string]struct{})
	phases := make(map[string]struct{})

	for _, rec := range records {
		for patch := range rec.Patches() {
			crates[patch.FullName()] = struct{}{}

			run, err := patch.Run()
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", rec.Commit.SHA, err)
			}

			for _, pass := range run.Passes {
				phases[pass.Name] = struct{}{}
			}
		}
	}

	return &InputData{
		records:   records,
		crateList: sortedKeys(crates),
		phaseList: sortedKeys(phases),
		lastDate:  records[len(records)-1].Commit.Date,
		collapsed: collapsed,
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

// Len returns the number of stored records.
func (s *InputData) Len() int {
	return len(s.records)
}

// Collapsed returns how many input records were merged into an earlier
// record with an equal commit date.
func (s *InputData) Collapsed() int {
	return s.collapsed
}

// LastDate returns the most recent commit date.
func (s *InputData) LastDate() results.Date {
	return s.lastDate
}

// FirstDate returns the oldest commit date.
func (s *InputData) FirstDate() results.Date {
	return s.records[0].Commit.Date
}

// CrateList returns every patch full name seen, sorted.
func (s *InputData) CrateList() []string {
	return slices.Clone(s.crateList)
}

// PhaseList returns every pass name seen, sorted.
func (s *InputData) PhaseList() []string {
	return slices.Clone(s.phaseList)
}

// All yields every record in date order.
func (s *InputData) All() iter.Seq2[results.Commit, *results.CommitData] {
	return Range{records: s.records}.All()
}

// Lookup finds a commit by full SHA or by a unique SHA prefix.
func (s *InputData) Lookup(sha string) (*results.CommitData, error) {
	if sha == "" {
		return nil, fmt.Errorf("%w: empty sha", ErrCommitNotFound)
	}

	var match *results.CommitData

	for _, rec := range s.records {
		if rec.Commit.SHA == sha {
			return rec, nil
		}

		if !strings.HasPrefix(rec.Commit.SHA, sha) {
			continue
		}

		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousCommit, sha)
		}

		match = rec
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrCommitNotFound, sha)
	}

	return match, nil
}

// Info describes the store contents.
type Info struct {
	Records   int          `json:"records"    yaml:"records"`
	Collapsed int          `json:"collapsed"  yaml:"collapsed"`
	FirstDate results.Date `json:"first_date" yaml:"first_date"`
	LastDate  results.Date `json:"last_date"  yaml:"last_date"`
	Crates    []string     `json:"crates"     yaml:"crates"`
	Phases    []string     `json:"phases"     yaml:"phases"`
}

// Info returns a snapshot of the store's size, date span and derived lists.
func (s *InputData) Info() Info {
	return Info{
		Records:   s.Len(),
		Collapsed: s.collapsed,
		FirstDate: s.FirstDate(),
		LastDate:  s.LastDate(),
		Crates:    s.CrateList(),
		Phases:    s.PhaseList(),
	}
}
