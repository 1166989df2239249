package schema

import "time"

// RunRecord represents a row from the rosmap_runs table.
type RunRecord struct {
	RunID           int64
	StartTime       time.Time
	EndTime         *time.Time
	RunDurationMs   *int32
	RepositoryCount int32
	ConfigParams    *string
}

// CheckpointRecord represents a row from the rosmap_records table.
type CheckpointRecord struct {
	RunID   int64
	Stage   Stage
	URL     string
	Payload string // JSON-encoded RepositoryRecord
}
