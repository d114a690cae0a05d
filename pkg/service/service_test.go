package service_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/perfsummary/internal/fixture"
	"github.com/Sumatoshi-tech/perfsummary/pkg/loader"
	"github.com/Sumatoshi-tech/perfsummary/pkg/results"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/store"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

var loadedAt = time.Date(2020, 2, 1, 12, 0, 0, 0, time.UTC)

// writeDataset writes four weekly commits from 2020-01-06 plus a second
// commit in the last week, so only week 0 holds two records.
func writeDataset(t *testing.T) string {
	t.Helper()

	dataDir := t.TempDir()
	records := fixture.WeeklyLadder(results.DateOf(2020, 1, 6), 4, 10, 1)
	records = append(records, fixture.Record("x01", results.DateOf(2020, 1, 29), "foo", "bar", fixture.Link(20)))

	require.NoError(t, fixture.WriteTimes(dataDir, records...))

	return dataDir
}

func newService(t *testing.T, dataDir string) *service.Service {
	t.Helper()

	svc, err := service.New(service.Options{DataDir: dataDir, Summary: summary.DefaultOptions()}, service.Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return loadedAt },
	})
	require.NoError(t, err)

	return svc
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := service.New(service.Options{Summary: summary.Options{}}, service.Deps{})
	require.ErrorIs(t, err, summary.ErrInvalidWeeks)
}

func TestQueriesBeforeReload(t *testing.T) {
	t.Parallel()

	svc := newService(t, t.TempDir())

	require.ErrorIs(t, svc.Ready(context.Background()), service.ErrNotLoaded)

	_, err := svc.Summary(context.Background(), service.Query{})
	require.ErrorIs(t, err, service.ErrNotLoaded)

	_, err = svc.Compare(context.Background(), "c00", "c01")
	require.ErrorIs(t, err, service.ErrNotLoaded)

	_, err = svc.Info()
	require.ErrorIs(t, err, service.ErrNotLoaded)
}

func TestReload(t *testing.T) {
	t.Parallel()

	svc := newService(t, writeDataset(t))

	snap, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Ready(context.Background()))

	assert.Equal(t, 5, snap.Data.Len())
	assert.Equal(t, loader.Stats{Files: 5, Measured: 5}, snap.Stats)
	assert.Equal(t, results.DateOf(2020, 1, 29), snap.Summary.Reference)

	require.Len(t, snap.Summary.Comparisons, 1)

	week := snap.Summary.Comparisons[0]
	assert.Equal(t, "c03", week.A.SHA)
	assert.Equal(t, "x01", week.B.SHA)
	assert.InDelta(t, 7.0, week.ByCrate["bar"]["link"], 1e-9)
	assert.InDelta(t, 10.0, snap.Summary.Total.ByCrate["bar"]["link"], 1e-9)
}

func TestReload_FailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	dataDir := writeDataset(t)
	svc := newService(t, dataDir)

	first, err := svc.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dataDir, loader.TimesDir)))

	_, err = svc.Reload(context.Background())
	require.Error(t, err)

	current, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestReload_EmptyDirectory(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dataDir, loader.TimesDir), 0o755))

	_, err := newService(t, dataDir).Reload(context.Background())
	require.ErrorIs(t, err, loader.ErrNoRecords)
}

func TestSummary_Queries(t *testing.T) {
	t.Parallel()

	svc := newService(t, writeDataset(t))

	snap, err := svc.Reload(context.Background())
	require.NoError(t, err)

	cached, err := svc.Summary(context.Background(), service.Query{})
	require.NoError(t, err)
	assert.Same(t, snap.Summary, cached)

	narrow, err := svc.Summary(context.Background(), service.Query{Weeks: 2})
	require.NoError(t, err)
	assert.Len(t, narrow.Comparisons, 1)
	assert.Len(t, narrow.Omitted, 1)

	past, err := svc.Summary(context.Background(), service.Query{Reference: "2020-01-13"})
	require.NoError(t, err)
	assert.Equal(t, results.DateOf(2020, 1, 13), past.Reference)
	assert.Empty(t, past.Comparisons)
	assert.Equal(t, "c01", past.Total.B.SHA)

	_, err = svc.Summary(context.Background(), service.Query{Reference: "yesterday"})
	require.ErrorIs(t, err, service.ErrInvalidQuery)

	_, err = svc.Summary(context.Background(), service.Query{Weeks: -1})
	require.ErrorIs(t, err, service.ErrInvalidQuery)

	_, err = svc.Summary(context.Background(), service.Query{Reference: "2030-01-01"})
	require.ErrorIs(t, err, summary.ErrNoTotalRange)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	svc := newService(t, writeDataset(t))

	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	cmp, err := svc.Compare(context.Background(), "c00", "x01")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, cmp.ByCrate["bar"]["link"], 1e-9)

	_, err = svc.Compare(context.Background(), "c", "x01")
	require.ErrorIs(t, err, store.ErrAmbiguousCommit)

	_, err = svc.Compare(context.Background(), "c00", "zzz")
	require.ErrorIs(t, err, store.ErrCommitNotFound)

	_, err = svc.Compare(context.Background(), "", "x01")
	require.ErrorIs(t, err, service.ErrInvalidQuery)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	svc := newService(t, writeDataset(t))

	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	info, err := svc.Info()
	require.NoError(t, err)
	assert.Equal(t, 5, info.Records)
	assert.Equal(t, results.DateOf(2020, 1, 6), info.FirstDate)
	assert.Equal(t, []string{"bar"}, info.Crates)
	assert.Equal(t, 5, info.Load.Measured)
	assert.Equal(t, loadedAt, info.LoadedAt)
}

func TestWatch_PicksUpNewRecords(t *testing.T) {
	t.Parallel()

	dataDir := writeDataset(t)
	svc := newService(t, dataDir)

	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go svc.Watch(ctx, 10*time.Millisecond)

	require.NoError(t, fixture.WriteTimes(dataDir,
		fixture.Record("x02", results.DateOf(2020, 1, 30), "foo", "bar", fixture.Link(21))))

	assert.Eventually(t, func() bool {
		snap, snapErr := svc.Snapshot()

		return snapErr == nil && snap.Data.Len() == 6
	}, 5*time.Second, 10*time.Millisecond)
}
