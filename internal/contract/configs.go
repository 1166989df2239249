package contract

import (
	"cmp"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/rosmap/schema"
)

// Default values for configuration.
const (
	DefaultRepositoryFolder   = "repositories"
	DefaultGitHubRateLimit    = 5000 // requests per hour
	DefaultBitbucketRateLimit = 1000 // requests per hour
	DefaultCacheSize          = 1024
	DefaultCacheTTL           = 24 * time.Hour
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DefaultPackageXMLTags are the package.xml elements that declare dependencies.
var DefaultPackageXMLTags = []string{
	"build_depend", "buildtool_depend", "run_depend", "depend",
	"test_depend", "exec_depend", "build_export_depend",
}

// DefaultManifestXMLTags are the manifest.xml elements that declare dependencies.
var DefaultManifestXMLTags = []string{"depend"}

// DefaultCpplintFilters disables the cpplint categories that are noise for ROS code.
var DefaultCpplintFilters = []string{
	"-whitespace/tab", "-whitespace/braces", "-build/headerguard", "-readability/streams",
	"-build/include_order", "-whitespace/newline", "-whitespace/labels", "-runtime/references",
}

// S3Config holds the settings of the checkpoint upload target.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
	UseSSL    bool
}

// Enabled reports whether checkpoints should be uploaded.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Config holds the runtime configuration for a run.
// This struct is the "final, validated" config.
type Config struct {
	Workspace        string
	RepositoryFolder string
	VCSKinds         []schema.VCSKind
	Platforms        []schema.PlatformKind

	GitHubToken        string // Please use env var as this is plaintext
	GitHubUsername     string
	GitHubPassword     string // Please use env var as this is plaintext
	GitHubRateLimit    int
	BitbucketRateLimit int

	PackageXMLTags  []string
	ManifestXMLTags []string
	Excludes        []string

	CpplintPath    string
	CpplintFilters []string

	Output       schema.OutputMode
	OutputFile   string
	Workers      int
	SkipRemote   bool
	LoadExisting bool // Resume from the latest stored local checkpoint
	Width        int  // Terminal width override (0 = auto-detect)
	UseColors    bool
	Verbose      bool

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	CacheSize      int
	CacheTTL       time.Duration

	S3 S3Config
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	Workspace        string   `mapstructure:"workspace"`
	RepositoryFolder string   `mapstructure:"repository-folder"`
	VCS              []string `mapstructure:"vcs"`
	Remotes          []string `mapstructure:"remotes"`

	GitHubToken        string `mapstructure:"github-token"`
	GitHubUsername     string `mapstructure:"github-username"`
	GitHubPassword     string `mapstructure:"github-password"`
	GitHubRateLimit    int    `mapstructure:"github-rate-limit"`
	BitbucketRateLimit int    `mapstructure:"bitbucket-rate-limit"`

	PackageXMLTags  []string `mapstructure:"package-xml-tags"`
	ManifestXMLTags []string `mapstructure:"manifest-xml-tags"`
	Exclude         []string `mapstructure:"exclude"`

	Cpplint        string   `mapstructure:"cpplint"`
	CpplintFilters []string `mapstructure:"cpplint-filters"`

	Output       string `mapstructure:"output"`
	OutputFile   string `mapstructure:"output-file"`
	Workers      int    `mapstructure:"workers"`
	SkipRemote   bool   `mapstructure:"skip-remote"`
	LoadExisting bool   `mapstructure:"load-existing"`
	Width        int    `mapstructure:"width"`
	Color        string `mapstructure:"color"`
	Verbose      bool   `mapstructure:"verbose"`

	RunBackend     string `mapstructure:"run-backend"`
	RunDBConnect   string `mapstructure:"run-db-connect"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	CacheSize      int    `mapstructure:"cache-size"`
	CacheTTL       string `mapstructure:"cache-ttl"`

	S3Endpoint  string `mapstructure:"s3-endpoint"`
	S3Bucket    string `mapstructure:"s3-bucket"`
	S3AccessKey string `mapstructure:"s3-access-key"`
	S3SecretKey string `mapstructure:"s3-secret-key"`
	S3Prefix    string `mapstructure:"s3-prefix"`
	S3UseSSL    bool   `mapstructure:"s3-use-ssl"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.VCSKinds = slices.Clone(c.VCSKinds)
	clone.Platforms = slices.Clone(c.Platforms)
	clone.PackageXMLTags = slices.Clone(c.PackageXMLTags)
	clone.ManifestXMLTags = slices.Clone(c.ManifestXMLTags)
	clone.Excludes = slices.Clone(c.Excludes)
	clone.CpplintFilters = slices.Clone(c.CpplintFilters)
	return &clone
}

// RootFor returns the directory that holds the checkouts of one VCS kind.
func (c *Config) RootFor(kind schema.VCSKind) string {
	return filepath.Join(c.Workspace, c.RepositoryFolder, string(kind))
}

// Params returns the configuration recorded alongside a run. Secrets are omitted.
func (c *Config) Params() map[string]any {
	params := map[string]any{
		"workspace":         c.Workspace,
		"repository_folder": c.RepositoryFolder,
		"vcs":               c.VCSKinds,
		"remotes":           c.Platforms,
		"workers":           c.Workers,
		"skip_remote":       c.SkipRemote,
		"load_existing":     c.LoadExisting,
		"output":            c.Output,
	}
	if c.CpplintPath != "" {
		params["cpplint"] = c.CpplintPath
	}
	return params
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateWorkspace(cfg, input); err != nil {
		return err
	}
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateRemoteInputs(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// validateWorkspace resolves the workspace root and the VCS kinds to scan.
func validateWorkspace(cfg *Config, input *ConfigRawInput) error {
	if strings.TrimSpace(input.Workspace) == "" {
		return fmt.Errorf("workspace is required")
	}
	abs, err := filepath.Abs(input.Workspace)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace %q: %w", input.Workspace, err)
	}
	cfg.Workspace = abs

	cfg.RepositoryFolder = input.RepositoryFolder
	if cfg.RepositoryFolder == "" {
		cfg.RepositoryFolder = DefaultRepositoryFolder
	}

	cfg.VCSKinds = nil
	for _, v := range splitList(input.VCS) {
		cfg.VCSKinds = append(cfg.VCSKinds, schema.VCSKind(strings.ToLower(v)))
	}
	if len(cfg.VCSKinds) == 0 {
		cfg.VCSKinds = slices.Clone(schema.AllVCSKinds)
	}
	return nil
}

// validateSimpleInputs processes and validates output, worker and analyzer settings.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.SkipRemote = input.SkipRemote
	cfg.LoadExisting = input.LoadExisting
	if cfg.LoadExisting && cfg.SkipRemote {
		return fmt.Errorf("--load-existing only runs remote enrichment and cannot be combined with --skip-remote")
	}
	cfg.Width = input.Width
	cfg.Verbose = input.Verbose
	cfg.CpplintPath = input.Cpplint

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be json, csv, parquet, text", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	cfg.PackageXMLTags = orDefault(splitList(input.PackageXMLTags), DefaultPackageXMLTags)
	cfg.ManifestXMLTags = orDefault(splitList(input.ManifestXMLTags), DefaultManifestXMLTags)
	cfg.CpplintFilters = orDefault(splitList(input.CpplintFilters), DefaultCpplintFilters)
	cfg.Excludes = splitList(input.Exclude)
	if _, err := NewPathMatcher(cfg.Excludes); err != nil {
		return fmt.Errorf("invalid --exclude value: %w", err)
	}
	return nil
}

// validateRemoteInputs processes the platform list, credentials and rate limits.
func validateRemoteInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Platforms = nil
	for _, r := range splitList(input.Remotes) {
		cfg.Platforms = append(cfg.Platforms, schema.PlatformKind(strings.ToLower(r)))
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = slices.Clone(schema.AllPlatformKinds)
	}

	cfg.GitHubToken = input.GitHubToken
	cfg.GitHubUsername = input.GitHubUsername
	cfg.GitHubPassword = input.GitHubPassword
	switch {
	case cfg.GitHubToken != "":
		// A token takes precedence over basic auth.
		cfg.GitHubUsername, cfg.GitHubPassword = "", ""
	case cfg.GitHubUsername == "":
		// Personal access tokens were historically configured as the password.
		cfg.GitHubToken, cfg.GitHubPassword = cfg.GitHubPassword, ""
	case cfg.GitHubPassword == "":
		return fmt.Errorf("github-username requires github-password")
	}

	if input.GitHubRateLimit < 0 || input.BitbucketRateLimit < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	cfg.GitHubRateLimit = input.GitHubRateLimit
	if cfg.GitHubRateLimit == 0 {
		cfg.GitHubRateLimit = DefaultGitHubRateLimit
	}
	cfg.BitbucketRateLimit = input.BitbucketRateLimit
	if cfg.BitbucketRateLimit == 0 {
		cfg.BitbucketRateLimit = DefaultBitbucketRateLimit
	}

	cfg.S3 = S3Config{
		Endpoint:  input.S3Endpoint,
		Bucket:    input.S3Bucket,
		AccessKey: input.S3AccessKey,
		SecretKey: input.S3SecretKey,
		Prefix:    strings.Trim(input.S3Prefix, "/"),
		UseSSL:    input.S3UseSSL,
	}
	if (cfg.S3.Endpoint == "") != (cfg.S3.Bucket == "") {
		return fmt.Errorf("s3-endpoint and s3-bucket must be set together")
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates run store and response cache backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// Both stores create their own tables, but a shared SQLite file serializes every write.
	if cfg.RunBackend == schema.SQLiteBackend && cfg.CacheBackend == schema.SQLiteBackend {
		runPath := cmp.Or(cfg.RunDBConnect, GetRunDBFilePath())
		cachePath := cmp.Or(cfg.CacheDBConnect, GetCacheDBFilePath())
		if runPath == cachePath {
			return fmt.Errorf("run and cache storage must use different SQLite database files. Both resolve to %q", runPath)
		}
	}

	cfg.CacheSize = input.CacheSize
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cfg.CacheTTL = DefaultCacheTTL
	if input.CacheTTL != "" {
		ttl, err := time.ParseDuration(input.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid --cache-ttl value: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	return nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func orDefault(values, defaults []string) []string {
	if len(values) == 0 {
		return slices.Clone(defaults)
	}
	return values
}
