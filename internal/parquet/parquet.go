// Package parquet provides data structures and functions for exporting rosmap
// records and runs to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/rosmap/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single rosmap run with metadata.
// This struct maps to the rosmap_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// RepositoryCount is the number of records in the final checkpoint
	RepositoryCount int32 `parquet:"repository_count,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Package is one manifest package nested under a repository row.
type Package struct {
	Name         string   `parquet:"name"`
	Dependencies []string `parquet:"dependencies"`
}

// Repository is the flattened Parquet row of one repository record.
// Absent fields are stored as nulls.
type Repository struct {
	URL string `parquet:"url,snappy"`

	BranchCount  *int64 `parquet:"branch_count,optional,snappy"`
	Contributors *int64 `parquet:"contributors,optional,snappy"`
	LastUpdate   *int64 `parquet:"last_update,optional,snappy"`

	Readme                *bool  `parquet:"readme,optional"`
	Changelog             *bool  `parquet:"changelog,optional"`
	ContinuousIntegration *bool  `parquet:"continuous_integration,optional"`
	Rosinstall            *bool  `parquet:"rosinstall,optional"`
	CpplintErrors         *int64 `parquet:"cpplint_errors,optional,snappy"`
	RosinstallEntries     *int64 `parquet:"rosinstall_entries,optional,snappy"`

	Stars              *int64    `parquet:"stars,optional,snappy"`
	OpenIssues         *int64    `parquet:"open_issues,optional,snappy"`
	OpenPullRequests   *int64    `parquet:"open_pull_requests,optional,snappy"`
	ClosedPullRequests *int64    `parquet:"closed_pull_requests,optional,snappy"`
	IssueDurations     []float64 `parquet:"issue_durations"`

	Packages []Package `parquet:"packages"`
}

// intColumns binds the integer columns of a Repository row to their record keys.
func (r *Repository) intColumns() map[schema.FieldKey]**int64 {
	return map[schema.FieldKey]**int64{
		schema.BranchCountField:        &r.BranchCount,
		schema.ContributorsField:       &r.Contributors,
		schema.LastUpdateField:         &r.LastUpdate,
		schema.CpplintErrorsField:      &r.CpplintErrors,
		schema.RosinstallEntriesField:  &r.RosinstallEntries,
		schema.StarsField:              &r.Stars,
		schema.OpenIssuesField:         &r.OpenIssues,
		schema.OpenPullRequestsField:   &r.OpenPullRequests,
		schema.ClosedPullRequestsField: &r.ClosedPullRequests,
	}
}

func (r *Repository) flagColumns() map[schema.FieldKey]**bool {
	return map[schema.FieldKey]**bool{
		schema.ReadmeField:                &r.Readme,
		schema.ChangelogField:             &r.Changelog,
		schema.ContinuousIntegrationField: &r.ContinuousIntegration,
		schema.RosinstallField:            &r.Rosinstall,
	}
}

// ConvertRecords converts repository records to Parquet rows.
// Fields without a column are dropped.
func ConvertRecords(records []schema.RepositoryRecord) []Repository {
	rows := make([]Repository, len(records))
	for i, rec := range records {
		row := &rows[i]
		row.URL = rec.URL
		for key, col := range row.intColumns() {
			if v, ok := rec.Ints[key]; ok {
				*col = &v
			}
		}
		for key, col := range row.flagColumns() {
			if v, ok := rec.Flags[key]; ok {
				*col = &v
			}
		}
		row.IssueDurations = rec.Series[schema.IssueDurationsField]
		for _, p := range rec.Packages {
			row.Packages = append(row.Packages, Package{Name: p.Name, Dependencies: p.Dependencies})
		}
	}
	return rows
}

// ToRecord converts a Parquet row back into a repository record.
// An empty issue_durations column reads back as an absent field.
func (r Repository) ToRecord() schema.RepositoryRecord {
	rec := schema.NewRepositoryRecord(r.URL)
	for key, col := range r.intColumns() {
		if *col != nil {
			rec.Ints[key] = **col
		}
	}
	for key, col := range r.flagColumns() {
		if *col != nil {
			rec.Flags[key] = **col
		}
	}
	if len(r.IssueDurations) > 0 {
		rec.Series[schema.IssueDurationsField] = r.IssueDurations
	}
	for _, p := range r.Packages {
		deps := p.Dependencies
		if deps == nil {
			deps = []string{}
		}
		rec.Packages = append(rec.Packages, schema.PackageRecord{Name: p.Name, Dependencies: deps})
	}
	return rec
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:           record.RunID,
			StartTime:       record.StartTime,
			EndTime:         record.EndTime,
			RunDurationMs:   record.RunDurationMs,
			RepositoryCount: record.RepositoryCount,
			ConfigParams:    record.ConfigParams,
		}
	}
	return result
}

// WriteRecords writes repository records as Parquet to w.
func WriteRecords(w io.Writer, records []schema.RepositoryRecord) error {
	return write(w, ConvertRecords(records))
}

// WriteRecordsParquet writes repository records to a Parquet file.
func WriteRecordsParquet(records []schema.RepositoryRecord, outputPath string) error {
	return writeFile(outputPath, ConvertRecords(records))
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeFile(outputPath, data)
}

// ReadRecordsParquet reads repository records back from a Parquet file.
func ReadRecordsParquet(path string) ([]schema.RepositoryRecord, error) {
	rows, err := parquet.ReadFile[Repository](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	records := make([]schema.RepositoryRecord, len(rows))
	for i, row := range rows {
		records[i] = row.ToRecord()
	}
	return records, nil
}

func writeFile[T any](outputPath string, data []T) (err error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { err = errors.Join(err, file.Close()) }()
	return write(file, data)
}

// write encodes rows with a schema inferred from the struct tags of T.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
