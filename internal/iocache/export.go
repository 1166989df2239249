package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/parquet"
	"github.com/huangsam/rosmap/schema"
)

// ExportRuns writes every stored run and the latest final record set to Parquet files
// named after outputFile.
func ExportRuns(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}
	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	runs, err := store.ListRuns(0)
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	stage, records, err := LatestFinalRecords(store)
	if err != nil {
		return fmt.Errorf("failed to retrieve records: %w", err)
	}
	recordsFile := outputFile + ".records.parquet"
	if err := parquet.WriteRecordsParquet(records, recordsFile); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d %s records to: %s\n", len(records), stage, recordsFile)
	return nil
}

// LatestFinalRecords returns the newest remote checkpoint, or the newest local
// one when no stored run reached the remote stage.
func LatestFinalRecords(store contract.RunStore) (schema.Stage, []schema.RepositoryRecord, error) {
	records, err := store.LatestRecords(schema.RemoteStage)
	if errors.Is(err, ErrNoRuns) {
		records, err = store.LatestRecords(schema.LocalStage)
		return schema.LocalStage, records, err
	}
	return schema.RemoteStage, records, err
}
