package manifest

import (
	"errors"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
	"golang.org/x/mod/modfile"
)

// GoModPattern matches Go module manifests.
const GoModPattern = "**/go.mod"

// NewGoMod creates the analyzer for go.mod manifests.
func NewGoMod(fs afero.Fs, exclude *contract.PathMatcher) (*Analyzer, error) {
	parse := func(path string, data []byte) ([]schema.PackageRecord, error) {
		f, err := modfile.ParseLax(path, data, nil)
		if err != nil {
			return nil, err
		}
		if f.Module == nil || f.Module.Mod.Path == "" {
			return nil, errors.New("missing module directive")
		}
		rec := schema.PackageRecord{Name: f.Module.Mod.Path, Dependencies: []string{}}
		for _, req := range f.Require {
			rec.Dependencies = append(rec.Dependencies, req.Mod.Path)
		}
		return []schema.PackageRecord{rec}, nil
	}
	return newAnalyzer("go.mod", GoModPattern, fs, exclude, parse)
}
