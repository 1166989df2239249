// Package manifest implements package analyzers for ROS and general-purpose manifest dialects.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// vcsDirs are never descended into.
var vcsDirs = map[string]struct{}{".git": {}, ".hg": {}, ".svn": {}}

// parseFunc turns one manifest into the packages it declares.
type parseFunc func(path string, data []byte) ([]schema.PackageRecord, error)

// Analyzer scans a working tree for one manifest dialect.
type Analyzer struct {
	name    string
	pattern string
	glob    glob.Glob
	fs      afero.Fs
	exclude *contract.PathMatcher
	parse   parseFunc
}

var _ contract.PackageAnalyzer = &Analyzer{} // Compile-time check

func newAnalyzer(name, pattern string, fs afero.Fs, exclude *contract.PathMatcher, parse parseFunc) (*Analyzer, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("compile %s pattern %q: %w", name, pattern, err)
	}
	return &Analyzer{name: name, pattern: pattern, glob: g, fs: fs, exclude: exclude, parse: parse}, nil
}

// Name implements the PackageAnalyzer interface.
func (a *Analyzer) Name() string {
	return a.name
}

// Pattern implements the PackageAnalyzer interface.
func (a *Analyzer) Pattern() string {
	return a.pattern
}

// Analyze implements the PackageAnalyzer interface.
func (a *Analyzer) Analyze(ctx context.Context, rootPath string) (map[string]schema.PackageRecord, error) {
	logger := contract.LoggerFromContext(ctx).With("analyzer", a.name)

	files, err := a.find(ctx, rootPath)
	if err != nil {
		return nil, err
	}

	packages := make(map[string]schema.PackageRecord)
	for _, path := range files {
		data, err := afero.ReadFile(a.fs, path)
		if err != nil {
			logger.Warn("Skipping unreadable manifest", "path", path, "err", err)
			continue
		}
		records, err := a.parse(path, data)
		if err != nil {
			logger.Warn("Skipping malformed manifest", "path", path, "err", fmt.Errorf("%w: %v", contract.ErrMalformedManifest, err))
			continue
		}
		logger.Debug("Analyzed manifest", "path", path, "packages", len(records))
		for _, rec := range records {
			fold(packages, rec)
		}
	}
	return packages, nil
}

// fold merges rec into packages. Dependencies of a repeated name are appended.
func fold(packages map[string]schema.PackageRecord, rec schema.PackageRecord) {
	existing, ok := packages[rec.Name]
	if !ok {
		existing = schema.PackageRecord{Name: rec.Name, Dependencies: []string{}}
	}
	existing.Name = rec.Name
	existing.Dependencies = append(existing.Dependencies, rec.Dependencies...)
	packages[rec.Name] = existing
}

// find walks rootPath in lexical order and returns every file matching the pattern.
// The pattern is matched against the relative path with a leading slash, so
// "**/package.xml" also matches a manifest at the root.
func (a *Analyzer) find(ctx context.Context, rootPath string) ([]string, error) {
	var files []string
	err := afero.Walk(a.fs, rootPath, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if _, skip := vcsDirs[info.Name()]; skip || a.exclude.Match(rel) || a.exclude.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if a.exclude.Match(rel) {
			return nil
		}
		if a.glob.Match("/" + rel) {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", contract.ErrWorkspace, rootPath)
	}
	return files, err
}

// trimmed returns s without surrounding whitespace, and whether anything is left.
func trimmed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
