// Package fixture builds synthetic benchmark records for tests.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

// Record builds a CommitData with one group holding one patch whose single
// run is named after the patch.
func Record(sha string, date results.Date, group, patch string, passes ...results.Pass) results.CommitData {
	return results.CommitData{
		Commit: results.Commit{SHA: sha, Date: date},
		Benchmarks: map[string][]results.Patch{
			group: {{
				Name: patch,
				Runs: []results.Run{{Name: patch, Passes: passes}},
			}},
		},
	}
}

// Link returns a "link" pass with the given time.
func Link(time float64) results.Pass {
	return results.Pass{Name: "link", Time: time}
}

// WeeklyLadder builds n commits spaced one week apart starting at first,
// each with a "link" pass whose time grows by step per week.
func WeeklyLadder(first results.Date, n int, base, step float64) []results.CommitData {
	batch := make([]results.CommitData, 0, n)

	for i := range n {
		batch = append(batch, Record(
			fmt.Sprintf("c%02d", i),
			first.AddWeeks(i),
			"foo", "bar",
			Link(base+float64(i)*step),
		))
	}

	return batch
}

// WriteTimes writes each record as <dataDir>/times/<sha>.json.
func WriteTimes(dataDir string, records ...results.CommitData) error {
	dir := filepath.Join(dataDir, "times")

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create times dir: %w", err)
	}

	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", record.Commit.SHA, err)
		}

		err = os.WriteFile(filepath.Join(dir, record.Commit.SHA+".json"), raw, 0o600)
		if err != nil {
			return fmt.Errorf("write %s: %w", record.Commit.SHA, err)
		}
	}

	return nil
}
