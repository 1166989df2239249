package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rosmap/core"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// fieldColumns returns the sorted union of field keys present in any record.
func fieldColumns(records []schema.RepositoryRecord) []schema.FieldKey {
	seen := map[schema.FieldKey]struct{}{}
	for _, rec := range records {
		for _, key := range rec.FieldKeys() {
			seen[key] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// writeCSVRecords writes one row per record. Absent fields are empty cells,
// sequences are joined with '|' and packages are written as name[dep|dep];...
func writeCSVRecords(w io.Writer, records []schema.RepositoryRecord) error {
	columns := fieldColumns(records)
	header := []string{"url"}
	for _, key := range columns {
		header = append(header, string(key))
	}
	header = append(header, "packages")

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.URL}
		for _, key := range columns {
			row = append(row, cell(rec, key))
		}
		row = append(row, formatPackages(rec.Packages))
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func cell(rec schema.RepositoryRecord, key schema.FieldKey) string {
	if v, ok := rec.Int(key); ok {
		return strconv.FormatInt(v, 10)
	}
	if v, ok := rec.Flag(key); ok {
		return strconv.FormatBool(v)
	}
	if v, ok := rec.Sequence(key); ok {
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, "|")
	}
	return ""
}

func formatPackages(pkgs []schema.PackageRecord) string {
	parts := make([]string, len(pkgs))
	for i, p := range pkgs {
		parts[i] = p.Name + "[" + strings.Join(p.Dependencies, "|") + "]"
	}
	return strings.Join(parts, ";")
}

// writeRecordTable generates and writes the human-readable table followed by a summary.
func writeRecordTable(w io.Writer, records []schema.RepositoryRecord, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"URL", "Branches", "Contrib", "Updated", "Stars", "Issues", "PRs", "Pkgs", "Readme", "CI", "Lint"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	urlWidth := GetMaxTableURLWidth(cfg)
	var data [][]string
	for _, rec := range records {
		data = append(data, []string{
			contract.TruncatePath(rec.URL, urlWidth),
			intCell(rec, schema.BranchCountField),
			intCell(rec, schema.ContributorsField),
			dateCell(rec, schema.LastUpdateField),
			intCell(rec, schema.StarsField),
			intCell(rec, schema.OpenIssuesField),
			intCell(rec, schema.OpenPullRequestsField),
			strconv.Itoa(len(rec.Packages)),
			flagCell(rec, schema.ReadmeField, cfg.UseColors),
			flagCell(rec, schema.ContinuousIntegrationField, cfg.UseColors),
			intCell(rec, schema.CpplintErrorsField),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	summary := core.Summarize(records)
	if _, err := fmt.Fprintf(w, "%d repositories, %d packages, %d dependencies, %d enriched remotely\n",
		summary.Repositories, summary.Packages, summary.Dependencies, summary.EnrichedByRemote); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(summary.FlagCounts)) {
		if _, err := fmt.Fprintf(w, "  %s: %d\n", key, summary.FlagCounts[key]); err != nil {
			return err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(summary.CounterTotals)) {
		if _, err := fmt.Fprintf(w, "  %s total: %d\n", key, summary.CounterTotals[key]); err != nil {
			return err
		}
	}
	return nil
}

func intCell(rec schema.RepositoryRecord, key schema.FieldKey) string {
	if v, ok := rec.Int(key); ok {
		return strconv.FormatInt(v, 10)
	}
	return "-"
}

func dateCell(rec schema.RepositoryRecord, key schema.FieldKey) string {
	if v, ok := rec.Int(key); ok {
		return time.Unix(v, 0).UTC().Format(time.DateOnly)
	}
	return "-"
}

func flagCell(rec schema.RepositoryRecord, key schema.FieldKey, useColors bool) string {
	if v, ok := rec.Flag(key); ok {
		return contract.FlagLabel(v, useColors)
	}
	return "-"
}
