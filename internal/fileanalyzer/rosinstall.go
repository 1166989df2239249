package fileanalyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Rosinstall counts the repositories referenced by rosinstall and vcstool files.
type Rosinstall struct {
	fs afero.Fs
}

var _ contract.FileAnalyzer = &Rosinstall{} // Compile-time check

// NewRosinstall creates the rosinstall analyzer.
func NewRosinstall(fs afero.Fs) *Rosinstall {
	return &Rosinstall{fs: fs}
}

// Name implements the FileAnalyzer interface.
func (r *Rosinstall) Name() string {
	return "rosinstall"
}

// InitializeFields implements the FileAnalyzer interface.
func (r *Rosinstall) InitializeFields(rec contract.RecordWriter) {
	rec.InitInt(schema.RosinstallEntriesField, 0)
}

// AnalyzeFiles implements the FileAnalyzer interface.
func (r *Rosinstall) AnalyzeFiles(ctx context.Context, files []string, rec contract.RecordWriter) error {
	logger := contract.LoggerFromContext(ctx)
	for _, path := range files {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".rosinstall" && ext != ".repos" {
			continue
		}
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			logger.Warn("Skipping unreadable file", "path", path, "err", err)
			continue
		}
		n, err := countEntries(ext, data)
		if err != nil {
			logger.Warn("Skipping malformed file", "path", path, "err", err)
			continue
		}
		rec.AddInt(schema.RosinstallEntriesField, n)
	}
	return nil
}

// countEntries parses a rosinstall list of single-key maps, or a vcstool
// document with a top-level repositories map.
func countEntries(ext string, data []byte) (int64, error) {
	if ext == ".repos" {
		var doc struct {
			Repositories map[string]yaml.Node `yaml:"repositories"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return 0, fmt.Errorf("%w: %v", contract.ErrMalformedManifest, err)
		}
		return int64(len(doc.Repositories)), nil
	}
	var entries []map[string]yaml.Node
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("%w: %v", contract.ErrMalformedManifest, err)
	}
	return int64(len(entries)), nil
}
