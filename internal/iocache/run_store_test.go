package iocache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/rosmap/internal/parquet"
	"github.com/huangsam/rosmap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMemoryRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecords() []schema.RepositoryRecord {
	a := schema.NewRepositoryRecord("https://github.com/ros/ros_comm")
	a.Ints[schema.BranchCountField] = 3
	a.Flags[schema.ReadmeField] = true
	a.Packages = []schema.PackageRecord{{Name: "roscpp", Dependencies: []string{"rosconsole"}}}

	b := schema.NewRepositoryRecord("https://bitbucket.org/osrf/gazebo")
	b.Series[schema.IssueDurationsField] = []float64{60}
	return []schema.RepositoryRecord{a, b}
}

func TestRunStore_NoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	id, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, store.RecordCheckpoint(id, schema.LocalStage, testRecords()))
	assert.NoError(t, store.EndRun(id, time.Now(), 2))

	_, err = store.LatestRecords(schema.LocalStage)
	assert.ErrorIs(t, err, ErrNoRuns)
	runs, err := store.ListRuns(10)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, store.Close())
}

func TestRunStore_Lifecycle(t *testing.T) {
	store := newMemoryRunStore(t)
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := store.BeginRun(start, map[string]any{"workers": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	records := testRecords()
	require.NoError(t, store.RecordCheckpoint(id, schema.LocalStage, records))
	require.NoError(t, store.EndRun(id, start.Add(1500*time.Millisecond), len(records)))

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, start.Equal(runs[0].StartTime))
	require.NotNil(t, runs[0].EndTime)
	require.NotNil(t, runs[0].RunDurationMs)
	assert.Equal(t, int32(1500), *runs[0].RunDurationMs)
	assert.Equal(t, int32(2), runs[0].RepositoryCount)
	require.NotNil(t, runs[0].ConfigParams)
	assert.JSONEq(t, `{"workers":4}`, *runs[0].ConfigParams)

	got, err := store.LatestRecords(schema.LocalStage)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://bitbucket.org/osrf/gazebo", got[0].URL)
	assert.Equal(t, []float64{60}, got[0].Series[schema.IssueDurationsField])
	assert.Equal(t, records[0], got[1])

	_, err = store.LatestRecords(schema.RemoteStage)
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestRunStore_CheckpointReplacesStage(t *testing.T) {
	store := newMemoryRunStore(t)
	id, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordCheckpoint(id, schema.RemoteStage, testRecords()))
	require.NoError(t, store.RecordCheckpoint(id, schema.RemoteStage, testRecords()[:1]))

	got, err := store.LatestRecords(schema.RemoteStage)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRunStore_LatestRunWins(t *testing.T) {
	store := newMemoryRunStore(t)
	now := time.Now()

	first, err := store.BeginRun(now, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordCheckpoint(first, schema.LocalStage, testRecords()))

	second, err := store.BeginRun(now.Add(time.Minute), nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordCheckpoint(second, schema.LocalStage, testRecords()[1:]))

	got, err := store.LatestRecords(schema.LocalStage)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://bitbucket.org/osrf/gazebo", got[0].URL)

	runs, err := store.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].RunID)
	assert.Nil(t, runs[0].EndTime)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, second, status.LastRunID)
	assert.Equal(t, 2, status.TotalRepositories)
	assert.Equal(t, int64(2), status.TableSizes[runsTable])
	assert.Equal(t, int64(3), status.TableSizes[recordsTable])
}

func TestRunStore_EndUnknownRun(t *testing.T) {
	store := newMemoryRunStore(t)
	assert.Error(t, store.EndRun(42, time.Now(), 0))
}

func TestMigrateRuns(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, MigrateRuns(&out, schema.NoneBackend, "", -1), "not supported")

	path := filepath.Join(t.TempDir(), "runs.db")
	require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, path, -1))
	assert.Contains(t, out.String(), "to version 2")

	out.Reset()
	require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, path, -1))
	assert.Contains(t, out.String(), "No migration needed")

	require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, path, 1))
	require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, path, 0))
	require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, path, -1))

	// The migrated schema is usable by the store
	store, err := NewRunStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	_, err = store.BeginRun(time.Now(), nil)
	assert.NoError(t, err)
}

func TestExportRuns(t *testing.T) {
	store := newMemoryRunStore(t)
	var out bytes.Buffer
	prefix := filepath.Join(t.TempDir(), "export")

	assert.ErrorContains(t, ExportRuns(&out, store, ""), "--output-file")
	assert.ErrorContains(t, ExportRuns(&out, store, prefix), "no run data")

	id, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordCheckpoint(id, schema.LocalStage, testRecords()))

	require.NoError(t, ExportRuns(&out, store, prefix))
	assert.Contains(t, out.String(), "Exported 1 runs")
	assert.Contains(t, out.String(), "Exported 2 local records")

	records, err := parquet.ReadRecordsParquet(prefix + ".records.parquet")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunSink(t *testing.T) {
	store := &MockRunStore{}
	start := time.Unix(100, 0)
	end := time.Unix(200, 0)
	records := testRecords()

	store.On("BeginRun", start, map[string]any{"workers": 1}).Return(int64(7), nil)
	store.On("RecordCheckpoint", int64(7), schema.LocalStage, records).Return(nil)
	store.On("RecordCheckpoint", int64(7), schema.RemoteStage, records[:1]).Return(nil)
	store.On("EndRun", int64(7), end, 1).Return(nil)

	sink, err := BeginRunSink(store, start, map[string]any{"workers": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), sink.RunID())

	require.NoError(t, sink.WriteCheckpoint(context.Background(), schema.LocalStage, records))
	require.NoError(t, sink.WriteCheckpoint(context.Background(), schema.RemoteStage, records[:1]))
	require.NoError(t, sink.Finish(end))
	store.AssertExpectations(t)
}

func TestRunSink_Errors(t *testing.T) {
	store := &MockRunStore{}
	store.On("BeginRun", mock.Anything, mock.Anything).Return(int64(0), errors.New("locked")).Once()

	_, err := BeginRunSink(store, time.Now(), nil)
	assert.ErrorContains(t, err, "locked")

	store.On("BeginRun", mock.Anything, mock.Anything).Return(int64(1), nil)
	store.On("RecordCheckpoint", int64(1), schema.LocalStage, mock.Anything).Return(errors.New("disk full"))
	sink, err := BeginRunSink(store, time.Now(), nil)
	require.NoError(t, err)
	assert.ErrorContains(t, sink.WriteCheckpoint(context.Background(), schema.LocalStage, nil), "disk full")
}

func TestPrintRunStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintRunStatus(&buf, schema.RunStatus{
		Backend:           "sqlite",
		Connected:         true,
		TotalRuns:         1,
		LastRunID:         1,
		TotalRepositories: 12,
		TableSizes:        map[string]int64{recordsTable: 24, runsTable: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Repositories: 12")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(recordsTable)), bytes.Index(buf.Bytes(), []byte(runsTable+":")))
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	PrintRuns(&buf, nil)
	assert.Equal(t, "No runs stored.\n", buf.String())

	buf.Reset()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	duration := int32(60000)
	PrintRuns(&buf, []schema.RunRecord{
		{RunID: 2, StartTime: start, EndTime: &end, RunDurationMs: &duration, RepositoryCount: 5},
		{RunID: 1, StartTime: start},
	})
	assert.Equal(t, "#2  2026-03-01 12:00:00  5 repositories in 60000ms\n#1  2026-03-01 12:00:00  incomplete\n", buf.String())
}

func TestLatestFinalRecords(t *testing.T) {
	store := &MockRunStore{}
	store.On("LatestRecords", schema.RemoteStage).Return(nil, ErrNoRuns)
	store.On("LatestRecords", schema.LocalStage).Return(testRecords(), nil)

	stage, records, err := LatestFinalRecords(store)
	require.NoError(t, err)
	assert.Equal(t, schema.LocalStage, stage)
	assert.Equal(t, testRecords(), records)
}
