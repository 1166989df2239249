// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/rosmap/schema"
)

// RecordWriter is the only way analyzers mutate a repository record.
// Init methods are set-if-absent and report whether they wrote anything.
// Accumulators treat an absent field as its zero value.
type RecordWriter interface {
	URL() string

	InitInt(key schema.FieldKey, value int64) bool
	InitFlag(key schema.FieldKey, value bool) bool
	InitSeries(key schema.FieldKey) bool

	// AddInt sums delta into a counter.
	AddInt(key schema.FieldKey, delta int64)
	// OrFlag ORs value into a flag. A true flag never becomes false.
	OrFlag(key schema.FieldKey, value bool)
	// AppendSeries appends values in order without dedup.
	AppendSeries(key schema.FieldKey, values ...float64)
	// AppendPackages appends package records in order without dedup.
	AppendPackages(pkgs ...schema.PackageRecord)

	// Snapshot returns a deep copy of the current record state.
	Snapshot() schema.RepositoryRecord
}

// AggregationStore is the shared keyed record set for one run.
type AggregationStore interface {
	// Record returns the record for url, creating it with only url set if absent.
	Record(url string) RecordWriter

	// Lookup returns the record for url without creating it.
	Lookup(url string) (RecordWriter, bool)

	// URLs returns every record key in sorted order.
	URLs() []string

	// Snapshot returns deep copies of every record in URL order.
	Snapshot() []schema.RepositoryRecord

	Len() int
}

// Checkout is one local repository discovered by a RepositoryAnalyzer.
type Checkout struct {
	LocalPath string
	RemoteURL string
}

// RepositoryAnalyzer discovers checkouts of one VCS kind and writes VCS-derived fields.
type RepositoryAnalyzer interface {
	Kind() schema.VCSKind

	// Analyze enumerates the direct subdirectories of rootPath, skipping invalid checkouts,
	// and records branch_count, contributors and last_update for each remote URL.
	// visit is called for each valid checkout as soon as it is discovered; an error
	// from visit stops the enumeration and is returned.
	Analyze(ctx context.Context, rootPath string, store AggregationStore, visit func(Checkout) error) error
}

// PackageAnalyzer parses one manifest dialect found under a working tree.
type PackageAnalyzer interface {
	Name() string

	// Pattern is the glob matched against slash-separated paths relative to the root.
	Pattern() string

	// Analyze returns packages keyed by name. Malformed manifests are skipped.
	Analyze(ctx context.Context, rootPath string) (map[string]schema.PackageRecord, error)
}

// FileAnalyzer derives flags or counters from the files of one working tree.
// Each analyzer owns a disjoint set of field keys.
type FileAnalyzer interface {
	Name() string

	// InitializeFields sets defaults for owned keys that are absent.
	InitializeFields(rec RecordWriter)

	// AnalyzeFiles accumulates into rec: OR for flags, SUM for counters.
	AnalyzeFiles(ctx context.Context, files []string, rec RecordWriter) error
}

// RemoteAnalyzer enriches matching records with data from a social coding platform.
type RemoteAnalyzer interface {
	Kind() schema.PlatformKind

	// AnalyzeRepositories enriches every record whose URL belongs to the platform.
	// A failure on one record must not stop the others.
	AnalyzeRepositories(ctx context.Context, store AggregationStore) error
}

// CommandRunner executes external tools such as git, hg, svn and cpplint.
// This allows analyzers to be tested without the real executables.
type CommandRunner interface {
	// Run executes name with args in dir and returns its stdout.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// CheckpointSink receives the serialized record set at each checkpoint.
type CheckpointSink interface {
	WriteCheckpoint(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error
}

// CacheManager defines the interface for managing persistent stores.
// This allows the persistence layer to be mocked for testing.
type CacheManager interface {
	GetCacheStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for response cache storage.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore tracks analysis runs and the records written at each checkpoint.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(startTime time.Time, configParams map[string]any) (int64, error)

	// RecordCheckpoint stores every record for one stage of a run
	RecordCheckpoint(runID int64, stage schema.Stage, records []schema.RepositoryRecord) error

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, repositoryCount int) error

	// LatestRecords returns the records of the most recent run that reached stage
	LatestRecords(stage schema.Stage) ([]schema.RepositoryRecord, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(limit int) ([]schema.RunRecord, error)

	GetStatus() (schema.RunStatus, error)
	Close() error
}
