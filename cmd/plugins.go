package cmd

import (
	"io"
	"os"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/plugins"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// pluginsCmd lists every built-in analyzer.
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the registered analyzers per capability.",
	Long: `Show every analyzer compiled into rosmap, grouped by capability:
RepositoryAnalyzer, PackageAnalyzer, FileAnalyzer and RemoteAnalyzer.

Analyzers run in the order listed. An analyzer whose constructor fails at
runtime (for example cpplint without --cpplint) is skipped with a warning.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return printPlugins(os.Stdout, plugins.Builtin())
	},
}

func printPlugins(w io.Writer, set *plugins.Set) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Capability", "Plugin"})
	var data [][]string
	for _, d := range set.Descriptors() {
		data = append(data, []string{contract.HeaderColor.Sprint(d.Category), d.Name})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
