package core

import (
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// Serialize flattens the store into deep copies ordered by URL.
func Serialize(store contract.AggregationStore) []schema.RepositoryRecord {
	return store.Snapshot()
}

// Summarize counts packages, dependencies, true flags and counter totals.
func Summarize(records []schema.RepositoryRecord) schema.RunSummary {
	summary := schema.RunSummary{
		Repositories:  len(records),
		FlagCounts:    map[schema.FieldKey]int{},
		CounterTotals: map[schema.FieldKey]int64{},
	}
	for _, rec := range records {
		summary.Packages += len(rec.Packages)
		for _, pkg := range rec.Packages {
			summary.Dependencies += len(pkg.Dependencies)
		}
		for key, v := range rec.Flags {
			if v {
				summary.FlagCounts[key]++
			}
		}
		for key, v := range rec.Ints {
			if counterFields[key] && v > 0 {
				summary.CounterTotals[key] += v
			}
		}
		if _, ok := rec.Int(schema.StarsField); ok {
			summary.EnrichedByRemote++
		}
	}
	return summary
}

// counterFields are the summed integer fields. Set-once fields such as
// last_update are not meaningful as totals.
var counterFields = map[schema.FieldKey]bool{
	schema.CpplintErrorsField:      true,
	schema.RosinstallEntriesField:  true,
	schema.OpenIssuesField:         true,
	schema.OpenPullRequestsField:   true,
	schema.ClosedPullRequestsField: true,
}
