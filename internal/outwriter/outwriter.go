// Package outwriter writes serialized record sets in the configured output format.
package outwriter

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/parquet"
	"github.com/huangsam/rosmap/schema"
)

// CheckpointWriter writes every checkpoint to the configured output file,
// overwriting the previous one. Without an output file only the final
// checkpoint is printed to stdout.
type CheckpointWriter struct {
	cfg    *contract.Config
	stdout io.Writer
}

var _ contract.CheckpointSink = &CheckpointWriter{} // Compile-time check

// Option customizes a CheckpointWriter.
type Option func(*CheckpointWriter)

// WithStdout replaces os.Stdout as the destination when no output file is set.
func WithStdout(w io.Writer) Option {
	return func(cw *CheckpointWriter) { cw.stdout = w }
}

// NewCheckpointWriter creates a writer for cfg.Output and cfg.OutputFile.
func NewCheckpointWriter(cfg *contract.Config, opts ...Option) *CheckpointWriter {
	cw := &CheckpointWriter{cfg: cfg, stdout: os.Stdout}
	for _, opt := range opts {
		opt(cw)
	}
	return cw
}

// FinalStage is the last checkpoint a run with cfg produces.
func FinalStage(cfg *contract.Config) schema.Stage {
	if cfg.SkipRemote {
		return schema.LocalStage
	}
	return schema.RemoteStage
}

// WriteCheckpoint implements the CheckpointSink interface.
func (cw *CheckpointWriter) WriteCheckpoint(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error {
	if cw.cfg.OutputFile == "" {
		if stage != FinalStage(cw.cfg) {
			return nil
		}
		return WriteRecords(cw.stdout, records, cw.cfg)
	}

	if cw.cfg.Output == schema.ParquetOut {
		if err := parquet.WriteRecordsParquet(records, cw.cfg.OutputFile); err != nil {
			return err
		}
	} else {
		file, err := contract.SelectOutputFile(cw.cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		if err := WriteRecords(file, records, cw.cfg); err != nil {
			_ = file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close output file: %w", err)
		}
	}
	contract.LoggerFromContext(ctx).Info("Wrote checkpoint", "stage", stage, "format", cw.cfg.Output, "path", cw.cfg.OutputFile, "repositories", len(records))
	return nil
}

// WriteRecords writes records to w, dispatching based on the output format configured.
func WriteRecords(w io.Writer, records []schema.RepositoryRecord, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.CSVOut:
		if err := writeCSVRecords(w, records); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := parquet.WriteRecords(w, records); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	case schema.TextOut:
		if err := writeRecordTable(w, records, cfg); err != nil {
			return fmt.Errorf("error writing table output: %w", err)
		}
	default:
		if err := writeJSON(w, nonNil(records)); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	}
	return nil
}

func nonNil(records []schema.RepositoryRecord) []schema.RepositoryRecord {
	if records == nil {
		return []schema.RepositoryRecord{}
	}
	return records
}
