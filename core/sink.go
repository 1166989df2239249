package core

import (
	"context"
	"fmt"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// SinkFunc adapts a function to the CheckpointSink interface.
type SinkFunc func(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error

// WriteCheckpoint implements the CheckpointSink interface.
func (f SinkFunc) WriteCheckpoint(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error {
	return f(ctx, stage, records)
}

// MultiSink writes each checkpoint to every sink in order and stops at the first failure.
type MultiSink []contract.CheckpointSink

var _ contract.CheckpointSink = MultiSink{} // Compile-time check

// WriteCheckpoint implements the CheckpointSink interface.
func (m MultiSink) WriteCheckpoint(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error {
	for i, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.WriteCheckpoint(ctx, stage, records); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
