// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the rosmap MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"rosmap Ecosystem Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{mgr: mgr}

	// --- 1. Tool: list_repositories ---
	s.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List the repository records of the latest stored run."),
		mcp.WithString("stage", mcp.Description("Checkpoint to read (local, remote). Defaults to the latest final checkpoint."), mcp.Enum("local", "remote")),
		mcp.WithString("contains", mcp.Description("Only return repositories whose URL contains this text.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleListRepositories)

	// --- 2. Tool: get_repository ---
	s.AddTool(mcp.NewTool("get_repository",
		mcp.WithDescription("Get the full record of one repository by its remote URL."),
		mcp.WithString("url", mcp.Description("Remote URL of the repository (SSH or HTTPS form)."), mcp.Required()),
	), h.handleGetRepository)

	// --- 3. Tool: get_package_dependencies ---
	s.AddTool(mcp.NewTool("get_package_dependencies",
		mcp.WithDescription("Get the declared dependencies of a package and the packages that depend on it."),
		mcp.WithString("name", mcp.Description("Package name."), mcp.Required()),
	), h.handleGetPackageDependencies)

	// --- 4. Tool: get_run_status ---
	s.AddTool(mcp.NewTool("get_run_status",
		mcp.WithDescription("Summarize the run store and list recent runs."),
		mcp.WithNumber("limit", mcp.Description("Number of recent runs to list. Defaults to 10.")),
	), h.handleGetRunStatus)

	return s
}

// StartMCPServer starts the rosmap MCP server on stdio.
func StartMCPServer(_ context.Context, mgr contract.CacheManager) error {
	s := NewMCPServer(mgr)
	return server.ServeStdio(s)
}
