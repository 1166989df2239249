package manifest

import (
	"errors"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// CargoPattern matches Rust crate manifests.
const CargoPattern = "**/Cargo.toml"

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Dependencies      map[string]toml.Primitive `toml:"dependencies"`
	BuildDependencies map[string]toml.Primitive `toml:"build-dependencies"`
	DevDependencies   map[string]toml.Primitive `toml:"dev-dependencies"`
}

// NewCargo creates the analyzer for Cargo.toml manifests. Workspace-only
// manifests without a [package] table are reported as malformed.
func NewCargo(fs afero.Fs, exclude *contract.PathMatcher) (*Analyzer, error) {
	parse := func(_ string, data []byte) ([]schema.PackageRecord, error) {
		var m cargoManifest
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, err
		}
		name, ok := trimmed(m.Package.Name)
		if !ok {
			return nil, errors.New("missing [package] name")
		}
		rec := schema.PackageRecord{Name: name, Dependencies: []string{}}
		for _, table := range []map[string]toml.Primitive{m.Dependencies, m.BuildDependencies, m.DevDependencies} {
			rec.Dependencies = append(rec.Dependencies, slices.Sorted(maps.Keys(table))...)
		}
		return []schema.PackageRecord{rec}, nil
	}
	return newAnalyzer("Cargo.toml", CargoPattern, fs, exclude, parse)
}
