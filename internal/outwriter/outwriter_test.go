package outwriter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/parquet"
	"github.com/huangsam/rosmap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []schema.RepositoryRecord {
	a := schema.NewRepositoryRecord("https://github.com/ros/ros_comm")
	a.Ints[schema.BranchCountField] = 3
	a.Ints[schema.StarsField] = 42
	a.Flags[schema.ReadmeField] = true
	a.Series[schema.IssueDurationsField] = []float64{1.5, 2}
	a.Packages = []schema.PackageRecord{
		{Name: "roscpp", Dependencies: []string{"rosconsole", "xmlrpcpp"}},
		{Name: "rostest", Dependencies: []string{}},
	}

	b := schema.NewRepositoryRecord("https://bitbucket.org/osrf/gazebo")
	b.Flags[schema.ReadmeField] = false
	return []schema.RepositoryRecord{b, a}
}

func TestFinalStage(t *testing.T) {
	assert.Equal(t, schema.RemoteStage, FinalStage(&contract.Config{}))
	assert.Equal(t, schema.LocalStage, FinalStage(&contract.Config{SkipRemote: true}))
}

func TestWriteCheckpoint_StdoutOnlyFinalStage(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCheckpointWriter(&contract.Config{Output: schema.JSONOut}, WithStdout(&buf))
	ctx := context.Background()

	require.NoError(t, cw.WriteCheckpoint(ctx, schema.LocalStage, sampleRecords()))
	assert.Empty(t, buf.String())

	require.NoError(t, cw.WriteCheckpoint(ctx, schema.RemoteStage, sampleRecords()))
	assert.Contains(t, buf.String(), `"url": "https://github.com/ros/ros_comm"`)
	assert.Contains(t, buf.String(), `"stars": 42`)
}

func TestWriteCheckpoint_SkipRemotePrintsLocal(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCheckpointWriter(&contract.Config{Output: schema.JSONOut, SkipRemote: true}, WithStdout(&buf))

	require.NoError(t, cw.WriteCheckpoint(context.Background(), schema.LocalStage, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCheckpoint_FileOverwrittenPerStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	var buf bytes.Buffer
	cw := NewCheckpointWriter(&contract.Config{Output: schema.JSONOut, OutputFile: path}, WithStdout(&buf))
	ctx := context.Background()

	records := sampleRecords()
	require.NoError(t, cw.WriteCheckpoint(ctx, schema.LocalStage, records))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(first), "gazebo")

	require.NoError(t, cw.WriteCheckpoint(ctx, schema.RemoteStage, records[1:]))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(second), "gazebo")
	assert.Contains(t, string(second), "ros_comm")
	assert.Empty(t, buf.String())
}

func TestWriteCheckpoint_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	cw := NewCheckpointWriter(&contract.Config{Output: schema.ParquetOut, OutputFile: path})

	require.NoError(t, cw.WriteCheckpoint(context.Background(), schema.RemoteStage, sampleRecords()))
	got, err := parquet.ReadRecordsParquet(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://bitbucket.org/osrf/gazebo", got[0].URL)
}

func TestWriteCheckpoint_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.json")
	cw := NewCheckpointWriter(&contract.Config{Output: schema.JSONOut, OutputFile: path})

	err := cw.WriteCheckpoint(context.Background(), schema.LocalStage, sampleRecords())
	assert.ErrorContains(t, err, "failed to open output file")
}

func TestWriteRecords_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRecords(), &contract.Config{Output: schema.CSVOut}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"url", "branch_count", "issue_durations", "readme", "stars", "packages"}, rows[0])
	assert.Equal(t, []string{"https://bitbucket.org/osrf/gazebo", "", "", "false", "", ""}, rows[1])
	assert.Equal(t, []string{
		"https://github.com/ros/ros_comm", "3", "1.5|2", "true", "42",
		"roscpp[rosconsole|xmlrpcpp];rostest[]",
	}, rows[2])
}

func TestWriteRecords_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Output: schema.TextOut, Width: 200}
	require.NoError(t, WriteRecords(&buf, sampleRecords(), cfg))

	out := buf.String()
	assert.Contains(t, out, "https://github.com/ros/ros_comm")
	assert.Contains(t, out, "2 repositories, 2 packages, 2 dependencies, 1 enriched remotely")
	assert.Contains(t, out, "readme: 1")
}

func TestWriteRecords_ParquetToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, sampleRecords(), &contract.Config{Output: schema.ParquetOut}))
	assert.Equal(t, "PAR1", buf.String()[:4])
}

func TestGetMaxTableURLWidth(t *testing.T) {
	assert.Equal(t, 20, GetMaxTableURLWidth(&contract.Config{Width: 60}))
	assert.Equal(t, 45, GetMaxTableURLWidth(&contract.Config{Width: 140}))
	assert.Equal(t, 80, GetMaxTableURLWidth(&contract.Config{Width: 400}))
}
