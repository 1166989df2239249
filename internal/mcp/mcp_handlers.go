package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultRunLimit = 10

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	mgr contract.CacheManager
}

// PackageDependencies describes one package name across the ecosystem.
type PackageDependencies struct {
	Name       string             `json:"name"`
	Providers  []PackageProvider  `json:"providers"`
	Dependents []PackageDependent `json:"dependents"`
}

// PackageProvider is a repository declaring the package.
type PackageProvider struct {
	URL          string   `json:"url"`
	Dependencies []string `json:"dependencies"`
}

// PackageDependent is a package that lists the queried one as a dependency.
type PackageDependent struct {
	Package string `json:"package"`
	URL     string `json:"url"`
}

// RunOverview is the result of get_run_status.
type RunOverview struct {
	Status schema.RunStatus   `json:"status"`
	Runs   []schema.RunRecord `json:"runs"`
}

func (h *toolHandler) runStore() (contract.RunStore, error) {
	if h.mgr == nil {
		return nil, errors.New("run store is not configured")
	}
	store := h.mgr.GetRunStore()
	if store == nil {
		return nil, errors.New("run store is not configured")
	}
	return store, nil
}

func (h *toolHandler) records(stage string) ([]schema.RepositoryRecord, error) {
	store, err := h.runStore()
	if err != nil {
		return nil, err
	}
	if stage != "" {
		return store.LatestRecords(schema.Stage(stage))
	}
	_, records, err := iocache.LatestFinalRecords(store)
	return records, err
}

func (h *toolHandler) handleListRepositories(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.records(request.GetString("stage", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load records: %v", err)), nil
	}

	contains := request.GetString("contains", "")
	limit := request.GetInt("limit", 0)
	out := make([]schema.RepositoryRecord, 0, len(records))
	for _, rec := range records {
		if contains != "" && !strings.Contains(rec.URL, contains) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return jsonResult(out), nil
}

func (h *toolHandler) handleGetRepository(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := contract.NormalizeRemoteURL(request.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	records, err := h.records("")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load records: %v", err)), nil
	}
	for _, rec := range records {
		if rec.URL == url {
			return jsonResult(rec), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("repository not found: %s", url)), nil
}

func (h *toolHandler) handleGetPackageDependencies(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(request.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	records, err := h.records("")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load records: %v", err)), nil
	}

	result := PackageDependencies{Name: name, Providers: []PackageProvider{}, Dependents: []PackageDependent{}}
	for _, rec := range records {
		for _, pkg := range rec.Packages {
			if pkg.Name == name {
				result.Providers = append(result.Providers, PackageProvider{URL: rec.URL, Dependencies: pkg.Dependencies})
			}
			for _, dep := range pkg.Dependencies {
				if dep == name {
					result.Dependents = append(result.Dependents, PackageDependent{Package: pkg.Name, URL: rec.URL})
					break
				}
			}
		}
	}
	if len(result.Providers) == 0 && len(result.Dependents) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("package not found: %s", name)), nil
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleGetRunStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, err := h.runStore()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := store.GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get run status: %v", err)), nil
	}
	limit := request.GetInt("limit", defaultRunLimit)
	runs, err := store.ListRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if runs == nil {
		runs = []schema.RunRecord{}
	}
	return jsonResult(RunOverview{Status: status, Runs: runs}), nil
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}
