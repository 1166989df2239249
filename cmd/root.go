package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "rosmap",
	Short: "Map the ROS ecosystem from cloned repositories.",
	Long: `rosmap scans a workspace of cloned git, Mercurial and Subversion repositories,
extracts their packages and declared dependencies, checks for common project
files, and enriches every repository with GitHub and Bitbucket metadata.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in the .env file, config file and ENV variables if set.
func initConfig() {
	// Tokens are usually kept in a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env file", "err", err)
	}

	setConfigFile()

	// Set environment variable prefix
	viper.SetEnvPrefix("ROSMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	for key, value := range configDefaults() {
		viper.SetDefault(key, value)
	}
}

// configDefaults returns the default of every configuration key. It feeds both
// viper and "rosmap config generate".
func configDefaults() map[string]any {
	return map[string]any{
		"workspace":            ".",
		"repository-folder":    contract.DefaultRepositoryFolder,
		"vcs":                  kindNames(schema.AllVCSKinds),
		"remotes":              kindNames(schema.AllPlatformKinds),
		"github-token":         "",
		"github-username":      "",
		"github-password":      "",
		"github-rate-limit":    contract.DefaultGitHubRateLimit,
		"bitbucket-rate-limit": contract.DefaultBitbucketRateLimit,
		"package-xml-tags":     contract.DefaultPackageXMLTags,
		"manifest-xml-tags":    contract.DefaultManifestXMLTags,
		"exclude":              []string{},
		"cpplint":              "",
		"cpplint-filters":      contract.DefaultCpplintFilters,
		"output":               string(schema.JSONOut),
		"output-file":          "",
		"workers":              contract.DefaultWorkers,
		"skip-remote":          false,
		"color":                "yes",
		"run-backend":          string(schema.SQLiteBackend),
		"run-db-connect":       "",
		"cache-backend":        string(schema.SQLiteBackend),
		"cache-db-connect":     "",
		"cache-size":           contract.DefaultCacheSize,
		"cache-ttl":            contract.DefaultCacheTTL.String(),
		"s3-endpoint":          "",
		"s3-bucket":            "",
		"s3-access-key":        "",
		"s3-secret-key":        "",
		"s3-prefix":            "",
		"s3-use-ssl":           true,
	}
}

func kindNames[K ~string](kinds []K) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func setConfigFile() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".rosmap") // Name of config file (without extension)
	viper.SetConfigType("yaml")    // We'll use YAML format
	viper.AddConfigPath(".")       // Look in the current directory
	viper.AddConfigPath("$HOME")   // Look in the home directory
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigFile()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(ctx context.Context, _ *cobra.Command, args []string) (context.Context, error) {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return ctx, err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return ctx, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.Workspace = args[0]
	} else if input.Workspace == "" {
		input.Workspace = "."
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return ctx, err
	}

	// 5. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return ctx, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	return contract.WithLogger(ctx, newLogger(cfg.Verbose)), nil
}

// newLogger builds the stderr logger used for the whole run.
func newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return contract.NewLogger(os.Stderr, level)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}
