package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/gobwas/glob"
)

// Color variables for console output.
var (
	HeaderColor = color.New(color.FgCyan, color.Bold) // HeaderColor marks section titles.
	OKColor     = color.New(color.FgGreen)            // OKColor marks present flags.
	MissColor   = color.New(color.FgYellow)           // MissColor marks absent flags.
)

// FlagLabel returns a colored yes/no label for console output.
func FlagLabel(v bool, useColors bool) string {
	text := "no"
	if v {
		text = "yes"
	}
	if !useColors {
		return text
	}
	if v {
		return OKColor.Sprint(text)
	}
	return MissColor.Sprint(text)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It returns os.Stdout when the path is empty.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// PathMatcher matches slash-separated relative paths against exclude patterns.
// Patterns ending with '/' are directory prefixes; everything else is a glob
// where '*' stays within one path segment and '**' spans segments.
type PathMatcher struct {
	prefixes []string
	globs    []glob.Glob
}

// NewPathMatcher compiles the given patterns. Blank patterns are ignored.
func NewPathMatcher(patterns []string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "/") {
			m.prefixes = append(m.prefixes, p)
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether relPath is excluded. A nil matcher matches nothing.
func (m *PathMatcher) Match(relPath string) bool {
	if m == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(relPath, prefix) || strings.Contains(relPath, "/"+prefix) {
			return true
		}
	}
	base := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		base = relPath[i+1:]
	}
	for _, g := range m.globs {
		if g.Match(relPath) || g.Match(base) {
			return true
		}
	}
	return false
}

// NormalizeRemoteURL converts a VCS remote into the canonical form used as record key.
// SSH remotes become https URLs; a trailing ".git" or "/" is removed.
func NormalizeRemoteURL(remote string) string {
	u := strings.TrimSpace(remote)
	switch {
	case strings.HasPrefix(u, "git@"):
		u = "https://" + strings.Replace(strings.TrimPrefix(u, "git@"), ":", "/", 1)
	case strings.HasPrefix(u, "ssh://"):
		u = strings.TrimPrefix(u, "ssh://")
		if i := strings.Index(u, "@"); i >= 0 {
			u = u[i+1:]
		}
		u = "https://" + u
	case strings.HasPrefix(u, "git://"):
		u = "https://" + strings.TrimPrefix(u, "git://")
	}
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return u
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the response cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".rosmap_cache.db"
	}
	return filepath.Join(homeDir, ".rosmap_cache.db")
}

// GetRunDBFilePath returns the path to the SQLite DB file for run storage.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".rosmap_runs.db"
	}
	return filepath.Join(homeDir, ".rosmap_runs.db")
}

// TruncatePath truncates a path to a maximum width with ellipsis prefix.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
