package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runBackendFromConfig reads and validates the run store settings.
func runBackendFromConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("run-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run store operations.
// This is used by commands that need run access without full shared setup.
func runsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no response cache for run commands)
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// runsMigrateSetup does NOT initialize stores or create tables,
// allowing migrations to run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsCmd focused on run history management.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored runs and their checkpoints",
	Long: `Manage the run store that keeps every checkpoint of every analysis run.

Each run stores:
- Run metadata (timestamp, configuration, duration, repository count)
- The local and remote checkpoint, one row per repository

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run store statistics
  list    - List recent runs
  export  - Export runs and the latest records to Parquet
  clear   - Remove all stored runs
  migrate - Run database schema migrations`,
}

// runsClearCmd clears every stored run.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored runs",
	Long: `Delete all stored runs and checkpoints.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the run tables

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseStores()
		if err := iocache.ClearRuns(cfg.RunBackend, contract.GetRunDBFilePath(), cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear runs", err)
		}
		fmt.Println("Runs cleared successfully.")
	},
}

// runsStatusCmd shows run store status.
var runsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display run store statistics and connection details",
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsListCmd lists recent runs.
var runsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List recent runs, newest first",
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		runs, err := iocache.Manager.GetRunStore().ListRuns(viper.GetInt("limit"))
		if err != nil {
			contract.LogFatal("Failed to list runs", err)
		}
		iocache.PrintRuns(os.Stdout, runs)
	},
}

// runsExportCmd exports run data to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored runs to Parquet for BI tools and analytics",
	Long: `Export stored data to Parquet format for use with analytics tools.

Exports two datasets:
- <output-file>.runs.parquet - metadata about each run
- <output-file>.records.parquet - the records of the latest final checkpoint

Requires: --output-file parameter

Examples:
  rosmap runs export --output-file ecosystem
  duckdb -c "SELECT url, stars FROM read_parquet('ecosystem.records.parquet') ORDER BY stars DESC LIMIT 10"`,
	PreRunE: runsSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExportRuns(os.Stdout, iocache.Manager.GetRunStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export runs", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  rosmap runs migrate

  # Rollback to the initial state
  rosmap runs migrate --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(os.Stdout, cfg.RunBackend, cfg.RunDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
