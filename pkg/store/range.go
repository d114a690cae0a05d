package store

import (
	"iter"
	"sort"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// Range is a read-only view over the records whose dates lie in a half-open
// interval. It shares the store's backing slice and can be iterated any
// number of times, from either end.
type Range struct {
	records []*results.CommitData
}

// Range returns the records with start <= date < end in ascending date order.
// An inverted or empty interval yields an empty range.
func (s *InputData) Range(start, end results.Date) Range {
	lo := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Commit.Date.Before(start)
	})
	hi := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Commit.Date.Before(end)
	})

	if hi <= lo {
		return Range{}
	}

	return Range{records: s.records[lo:hi:hi]}
}

// Len returns the number of records in the range.
func (r Range) Len() int {
	return len(r.records)
}

// First returns the earliest record of the range.
func (r Range) First() (results.Commit, *results.CommitData, bool) {
	if len(r.records) == 0 {
		return results.Commit{}, nil, false
	}

	rec := r.records[0]

	return rec.Commit, rec, true
}

// Last returns the latest record of the range.
func (r Range) Last() (results.Commit, *results.CommitData, bool) {
	if len(r.records) == 0 {
		return results.Commit{}, nil, false
	}

	rec := r.records[len(r.records)-1]

	return rec.Commit, rec, true
}

// All yields the records in ascending date order.
func (r Range) All() iter.Seq2[results.Commit, *results.CommitData] {
	return func(yield func(results.Commit, *results.CommitData) bool) {
		for _, rec := range r.records {
			if !yield(rec.Commit, rec) {
				return
			}
		}
	}
}

// Backward yields the records in descending date order.
func (r Range) Backward() iter.Seq2[results.Commit, *results.CommitData] {
	return func(yield func(results.Commit, *results.CommitData) bool) {
		for i := len(r.records) - 1; i >= 0; i-- {
			if !yield(r.records[i].Commit, r.records[i]) {
				return
			}
		}
	}
}
