package iocache

import (
	"context"
	"time"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// RunSink stores every checkpoint of one run in a RunStore.
type RunSink struct {
	store contract.RunStore
	runID int64
	last  int
}

var _ contract.CheckpointSink = &RunSink{} // Compile-time check

// BeginRunSink starts a run and returns a sink bound to it.
func BeginRunSink(store contract.RunStore, start time.Time, params map[string]any) (*RunSink, error) {
	runID, err := store.BeginRun(start, params)
	if err != nil {
		return nil, err
	}
	return &RunSink{store: store, runID: runID}, nil
}

// RunID returns the ID of the bound run.
func (s *RunSink) RunID() int64 {
	return s.runID
}

// WriteCheckpoint implements the CheckpointSink interface.
func (s *RunSink) WriteCheckpoint(_ context.Context, stage schema.Stage, records []schema.RepositoryRecord) error {
	if err := s.store.RecordCheckpoint(s.runID, stage, records); err != nil {
		return err
	}
	s.last = len(records)
	return nil
}

// Finish marks the run complete with the size of the last checkpoint.
func (s *RunSink) Finish(end time.Time) error {
	return s.store.EndRun(s.runID, end, s.last)
}
