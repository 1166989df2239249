package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of a checkpoint file.
	OutputMode string

	// DatabaseBackend represents the database backend for runs and caching.
	DatabaseBackend string

	// VCSKind identifies a version control system.
	VCSKind string

	// PlatformKind identifies a social coding platform.
	PlatformKind string

	// Stage identifies a serialization checkpoint.
	Stage string

	// FieldKey names an analyzer-owned field of a repository record.
	FieldKey string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text"
	JSONOut    OutputMode = "json" // default
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Supported version control systems.
const (
	GitKind        VCSKind = "git"
	MercurialKind  VCSKind = "hg"
	SubversionKind VCSKind = "svn"
)

// Supported social coding platforms.
const (
	GitHubKind    PlatformKind = "github"
	BitbucketKind PlatformKind = "bitbucket"
)

// Checkpoint stages.
const (
	LocalStage  Stage = "local"  // after discovery, package and file analysis
	RemoteStage Stage = "remote" // after platform enrichment
)

// Fields written by repository analyzers.
const (
	BranchCountField  FieldKey = "branch_count"
	ContributorsField FieldKey = "contributors"
	LastUpdateField   FieldKey = "last_update"
)

// Fields written by file analyzers.
const (
	ReadmeField                FieldKey = "readme"
	ChangelogField             FieldKey = "changelog"
	ContinuousIntegrationField FieldKey = "continuous_integration"
	RosinstallField            FieldKey = "rosinstall"
	CpplintErrorsField         FieldKey = "cpplint_errors"
	RosinstallEntriesField     FieldKey = "rosinstall_entries"
)

// Fields written by remote analyzers.
const (
	StarsField              FieldKey = "stars"
	OpenIssuesField         FieldKey = "open_issues"
	OpenPullRequestsField   FieldKey = "open_pull_requests"
	ClosedPullRequestsField FieldKey = "closed_pull_requests"
	IssueDurationsField     FieldKey = "issue_durations"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// AllVCSKinds lists the version control systems with built-in analyzers.
var AllVCSKinds = []VCSKind{GitKind, MercurialKind, SubversionKind}

// AllPlatformKinds lists the platforms with built-in analyzers.
var AllPlatformKinds = []PlatformKind{GitHubKind, BitbucketKind}
