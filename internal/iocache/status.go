package iocache

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/huangsam/rosmap/schema"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// PrintCacheStatus prints response cache status information.
func PrintCacheStatus(w io.Writer, status schema.CacheStatus) {
	_, _ = fmt.Fprintf(w, "Cache Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		_, _ = fmt.Fprintf(w, "Last Entry: %s\n", status.LastEntryTime.Format(statusTimeFormat))
		_, _ = fmt.Fprintf(w, "Oldest Entry: %s\n", status.OldestEntryTime.Format(statusTimeFormat))
	}
	_, _ = fmt.Fprintf(w, "Table Size: %d bytes\n", status.TableSizeBytes)
}

// PrintRunStatus prints run store status information.
func PrintRunStatus(w io.Writer, status schema.RunStatus) {
	_, _ = fmt.Fprintf(w, "Run Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %d\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Format(statusTimeFormat))
		_, _ = fmt.Fprintf(w, "Oldest Run: %s\n", status.OldestRunTime.Format(statusTimeFormat))
		_, _ = fmt.Fprintf(w, "Total Repositories: %d\n", status.TotalRepositories)
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}

// PrintRuns prints one line per run, newest first as returned by ListRuns.
func PrintRuns(w io.Writer, runs []schema.RunRecord) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs stored.")
		return
	}
	for _, run := range runs {
		state := "incomplete"
		if run.EndTime != nil && run.RunDurationMs != nil {
			state = fmt.Sprintf("%d repositories in %dms", run.RepositoryCount, *run.RunDurationMs)
		}
		_, _ = fmt.Fprintf(w, "#%d  %s  %s\n", run.RunID, run.StartTime.Format(statusTimeFormat), state)
	}
}
