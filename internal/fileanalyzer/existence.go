// Package fileanalyzer implements analyzers that derive record fields from a working tree's file list.
package fileanalyzer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// ciMarkers are basename fragments of continuous integration configuration files.
var ciMarkers = []string{".travis.yml", ".gitlab-ci.yml", "bitbucket-pipelines", "jenkinsfile"}

// Existence flags the presence of well-known repository files.
type Existence struct{}

var _ contract.FileAnalyzer = &Existence{} // Compile-time check

// NewExistence creates the existence analyzer.
func NewExistence() *Existence {
	return &Existence{}
}

// Name implements the FileAnalyzer interface.
func (e *Existence) Name() string {
	return "existence"
}

// InitializeFields implements the FileAnalyzer interface.
func (e *Existence) InitializeFields(rec contract.RecordWriter) {
	rec.InitFlag(schema.ReadmeField, false)
	rec.InitFlag(schema.ChangelogField, false)
	rec.InitFlag(schema.ContinuousIntegrationField, false)
	rec.InitFlag(schema.RosinstallField, false)
}

// AnalyzeFiles implements the FileAnalyzer interface.
func (e *Existence) AnalyzeFiles(_ context.Context, files []string, rec contract.RecordWriter) error {
	var readme, changelog, ci, rosinstall bool
	for _, path := range files {
		base := strings.ToLower(filepath.Base(path))
		readme = readme || strings.Contains(base, "readme")
		changelog = changelog || strings.Contains(base, "changelog")
		ci = ci || isCIConfig(path, base)
		rosinstall = rosinstall || strings.Contains(base, ".rosinstall")
	}
	rec.OrFlag(schema.ReadmeField, readme)
	rec.OrFlag(schema.ChangelogField, changelog)
	rec.OrFlag(schema.ContinuousIntegrationField, ci)
	rec.OrFlag(schema.RosinstallField, rosinstall)
	return nil
}

func isCIConfig(path, base string) bool {
	for _, marker := range ciMarkers {
		if strings.Contains(base, marker) {
			return true
		}
	}
	return strings.Contains(filepath.ToSlash(path), "/.github/workflows/")
}
