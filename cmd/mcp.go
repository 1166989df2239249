package cmd

import (
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the rosmap MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents query the records of the
latest stored run: repositories, package dependencies and run history.`,
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, iocache.Manager)
	},
}
