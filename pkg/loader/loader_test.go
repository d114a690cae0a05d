package loader_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/perfsummary/internal/fixture"
	"github.com/Sumatoshi-tech/perfsummary/pkg/loader"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
)

const negativeTime = `{"commit":{"sha":"neg","date":"2020-02-01T00:00:00Z"},
"benchmarks":{"g":[{"name":"p","runs":[{"name":"p","passes":[{"name":"link","time":-1}]}]}]}}`

func timesDir(t *testing.T) (string, string) {
	t.Helper()

	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, loader.TimesDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	return dataDir, dir
}

func writeRecord(t *testing.T, dir, name string, record results.CommitData) {
	t.Helper()

	raw, err := json.Marshal(record)
	require.NoError(t, err)

	if filepath.Ext(name) == loader.CompressedSuffix {
		require.NoError(t, loader.WriteCompressed(filepath.Join(dir, name), raw))

		return
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o600))
}

func writeRaw(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

// populate writes three usable records and five unusable files.
func populate(t *testing.T, dir string) {
	t.Helper()

	ladder := fixture.WeeklyLadder(results.DateOf(2020, 1, 1), 3, 10, 1)
	writeRecord(t, dir, "c00.json", ladder[0])
	writeRecord(t, dir, "c01.json", ladder[1])
	writeRecord(t, dir, "c02.json.lz4", ladder[2])

	writeRaw(t, dir, "empty.json", "  \n")
	writeRaw(t, dir, "garbage.json", "{not json")
	writeRaw(t, dir, "negative.json", negativeTime)
	writeRaw(t, dir, "nobench.json", `{"commit":{"sha":"nb","date":"2020-03-01"},"benchmarks":{}}`)
	writeRaw(t, dir, "tworuns.json", `{"commit":{"sha":"tr","date":"2020-03-02"},
"benchmarks":{"g":[{"name":"p","runs":[{"name":"p","passes":[]},{"name":"p","passes":[]}]}]}}`)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
}

func newLoader(opts loader.Options, logs io.Writer) *loader.Loader {
	return loader.New(opts, loader.Deps{Logger: slog.New(slog.NewTextHandler(logs, nil))})
}

func TestLoad_MixedDirectory(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)
	populate(t, dir)

	var logs bytes.Buffer

	records, stats, err := newLoader(loader.Options{ValidateSchema: true}, &logs).Load(context.Background(), dataDir)
	require.NoError(t, err)

	assert.Equal(t, loader.Stats{Files: 8, Skipped: 5, Malformed: 2, Measured: 3}, stats)
	require.Len(t, records, 3)
	assert.Equal(t, "c00", records[0].Commit.SHA)
	assert.Equal(t, "c02", records[2].Commit.SHA)
	assert.InDelta(t, 12.0, records[2].Benchmarks["foo"][0].Runs[0].Passes[0].Time, 1e-9)

	out := logs.String()
	assert.Contains(t, out, "skipping empty file")
	assert.Contains(t, out, "failed to parse result file")
	assert.Contains(t, out, "violates the result schema")
	assert.Contains(t, out, "skipping invalid record")
	assert.Contains(t, out, "measured=3")
}

func TestLoad_SchemaValidationDisabled(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)
	populate(t, dir)

	records, stats, err := newLoader(loader.Options{}, io.Discard).Load(context.Background(), dataDir)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Measured)
	assert.Equal(t, 1, stats.Malformed)
	assert.Len(t, records, 4)
}

func TestLoad_OutputIndependentOfWorkers(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)

	for i, record := range fixture.WeeklyLadder(results.DateOf(2021, 6, 1), 20, 1, 0.5) {
		writeRecord(t, dir, record.Commit.SHA+".json", record)

		if i%3 == 0 {
			writeRaw(t, dir, record.Commit.SHA+"-blank.json", "")
		}
	}

	serial, serialStats, err := newLoader(loader.Options{Workers: 1}, io.Discard).Load(context.Background(), dataDir)
	require.NoError(t, err)

	wide, wideStats, err := newLoader(loader.Options{Workers: 16}, io.Discard).Load(context.Background(), dataDir)
	require.NoError(t, err)

	assert.Equal(t, serialStats, wideStats)
	assert.Equal(t, serial, wide)
}

func TestLoad_MissingTimesDirectory(t *testing.T) {
	t.Parallel()

	_, _, err := newLoader(loader.Options{}, io.Discard).Load(context.Background(), t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)
	populate(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newLoader(loader.Options{Workers: 1}, io.Discard).Load(ctx, dataDir)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadStore(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)
	populate(t, dir)

	data, stats, err := newLoader(loader.Options{ValidateSchema: true}, io.Discard).LoadStore(context.Background(), dataDir)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Measured)
	assert.Equal(t, 3, data.Len())
	assert.Equal(t, results.DateOf(2020, 1, 15), data.LastDate())
	assert.Equal(t, []string{"bar"}, data.CrateList())
}

func TestLoadStore_NoRecords(t *testing.T) {
	t.Parallel()

	dataDir, dir := timesDir(t)
	writeRaw(t, dir, "empty.json", "")

	_, stats, err := newLoader(loader.Options{}, io.Discard).LoadStore(context.Background(), dataDir)
	require.ErrorIs(t, err, loader.ErrNoRecords)
	assert.Equal(t, 1, stats.Skipped)
}

func TestReadFile_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.json.lz4")
	payload := bytes.Repeat([]byte(`{"k":"v"}`), 500)

	require.NoError(t, loader.WriteCompressed(path, payload))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Less(t, len(onDisk), len(payload))

	got, err := loader.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(fixture.Record("a", results.DateOf(2020, 1, 1), "foo", "bar", fixture.Link(1)))
	require.NoError(t, err)

	violations, err := loader.ValidateDocument(raw)
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = loader.ValidateDocument([]byte(`{"benchmarks":{}}`))
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0].String(), "commit")

	violations, err = loader.ValidateDocument([]byte(negativeTime))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Field, "time")

	_, err = loader.ValidateDocument([]byte("{oops"))
	require.Error(t, err)
}
