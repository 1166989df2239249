package schema

import "time"

// CacheStatus represents the status of the response cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStatus represents the status of the run store.
type RunStatus struct {
	Backend           string           `json:"backend"`
	Connected         bool             `json:"connected"`
	TotalRuns         int              `json:"total_runs"`
	LastRunID         int64            `json:"last_run_id"`
	LastRunTime       time.Time        `json:"last_run_time"`
	OldestRunTime     time.Time        `json:"oldest_run_time"`
	TotalRepositories int              `json:"total_repositories"`
	TableSizes        map[string]int64 `json:"table_sizes"`
}

// RunSummary condenses a record set for display.
type RunSummary struct {
	Repositories     int                `json:"repositories"`
	Packages         int                `json:"packages"`
	Dependencies     int                `json:"dependencies"`
	FlagCounts       map[FieldKey]int   `json:"flag_counts"`
	CounterTotals    map[FieldKey]int64 `json:"counter_totals"`
	EnrichedByRemote int                `json:"enriched_by_remote"`
}
