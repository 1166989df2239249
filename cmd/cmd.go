// Package cmd defines the command-line interface for rosmap.
package cmd

import (
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)

	// Add the config subcommands to the parent config command
	configCmd.AddCommand(configGenerateCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("workspace", "", "Workspace root holding the repository folder")
	rootCmd.PersistentFlags().String("repository-folder", contract.DefaultRepositoryFolder, "Folder under the workspace with one subfolder per VCS kind")
	rootCmd.PersistentFlags().StringSlice("vcs", nil, "VCS kinds to scan: git, hg, svn (default all)")
	rootCmd.PersistentFlags().StringSlice("remotes", nil, "Platforms to query: github, bitbucket (default all)")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub API token (prefer ROSMAP_GITHUB_TOKEN)")
	rootCmd.PersistentFlags().String("github-username", "", "GitHub username")
	rootCmd.PersistentFlags().String("github-password", "", "GitHub password or token (prefer ROSMAP_GITHUB_PASSWORD)")
	rootCmd.PersistentFlags().Int("github-rate-limit", contract.DefaultGitHubRateLimit, "GitHub requests per hour")
	rootCmd.PersistentFlags().Int("bitbucket-rate-limit", contract.DefaultBitbucketRateLimit, "Bitbucket requests per hour")
	rootCmd.PersistentFlags().StringSlice("package-xml-tags", nil, "package.xml elements that declare dependencies")
	rootCmd.PersistentFlags().StringSlice("manifest-xml-tags", nil, "manifest.xml elements that declare dependencies")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "Glob patterns or dir/ prefixes to ignore inside checkouts")
	rootCmd.PersistentFlags().String("cpplint", "", "Path to the cpplint executable (empty disables the cpplint analyzer)")
	rootCmd.PersistentFlags().StringSlice("cpplint-filters", nil, "cpplint --filter categories")
	rootCmd.PersistentFlags().String("output", string(schema.JSONOut), "Output format: json or csv or parquet or text")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Bool("skip-remote", false, "Stop after local analysis")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("run-backend", string(schema.SQLiteBackend), "Run store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("run-db-connect", "", "Database connection string for the run store")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Response cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for the response cache (must differ from run-db-connect)")
	rootCmd.PersistentFlags().Int("cache-size", contract.DefaultCacheSize, "Number of API responses kept in memory")
	rootCmd.PersistentFlags().String("cache-ttl", contract.DefaultCacheTTL.String(), "How long a cached API response stays fresh")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3-compatible endpoint for checkpoint upload")
	rootCmd.PersistentFlags().String("s3-bucket", "", "Bucket for checkpoint upload")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key (prefer ROSMAP_S3_ACCESS_KEY)")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret key (prefer ROSMAP_S3_SECRET_KEY)")
	rootCmd.PersistentFlags().String("s3-prefix", "", "Object key prefix for uploaded checkpoints")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "Use TLS for the S3 endpoint")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	configGenerateCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	// Bind all flags of analyzeCmd to Viper
	analyzeCmd.Flags().Bool("load-existing", false, "Enrich the latest stored local checkpoint instead of scanning the workspace")
	if err := viper.BindPFlags(analyzeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analyze flags", err)
	}

	// Bind all flags of runsListCmd to Viper
	runsListCmd.Flags().Int("limit", 20, "Number of runs to list (0 lists all)")
	if err := viper.BindPFlags(runsListCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs list flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
