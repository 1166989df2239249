// Package plugins registers every built-in analyzer in an explicit constructor table.
package plugins

import (
	"github.com/charmbracelet/log"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/fileanalyzer"
	"github.com/huangsam/rosmap/internal/manifest"
	"github.com/huangsam/rosmap/internal/registry"
	"github.com/huangsam/rosmap/internal/remote"
	"github.com/huangsam/rosmap/internal/vcs"
	"github.com/spf13/afero"
)

// Deps are the shared constructor arguments of every analyzer.
type Deps struct {
	Config *contract.Config
	Runner contract.CommandRunner
	FS     afero.Fs
	Cache  contract.CacheStore // optional durable tier of the response cache

	// API roots, empty for the public services.
	GitHubURL    string
	BitbucketURL string
}

// Set holds one constructor table per capability.
type Set struct {
	Repository *registry.Category[contract.RepositoryAnalyzer, Deps]
	Package    *registry.Category[contract.PackageAnalyzer, Deps]
	File       *registry.Category[contract.FileAnalyzer, Deps]
	Remote     *registry.Category[contract.RemoteAnalyzer, Deps]
}

// Instances are the analyzers constructed for one run.
type Instances struct {
	Repository []contract.RepositoryAnalyzer
	Package    []contract.PackageAnalyzer
	File       []contract.FileAnalyzer
	Remote     []contract.RemoteAnalyzer
}

// NewSet returns a set with empty tables.
func NewSet() *Set {
	return &Set{
		Repository: registry.NewCategory[contract.RepositoryAnalyzer, Deps]("RepositoryAnalyzer"),
		Package:    registry.NewCategory[contract.PackageAnalyzer, Deps]("PackageAnalyzer"),
		File:       registry.NewCategory[contract.FileAnalyzer, Deps]("FileAnalyzer"),
		Remote:     registry.NewCategory[contract.RemoteAnalyzer, Deps]("RemoteAnalyzer"),
	}
}

// Instantiate constructs every registered analyzer. Failing constructors are skipped.
func (s *Set) Instantiate(logger *log.Logger, deps Deps) Instances {
	return Instances{
		Repository: s.Repository.Instantiate(logger, deps),
		Package:    s.Package.Instantiate(logger, deps),
		File:       s.File.Instantiate(logger, deps),
		Remote:     s.Remote.Instantiate(logger, deps),
	}
}

// Descriptors lists every registered analyzer grouped by category.
func (s *Set) Descriptors() []registry.Descriptor {
	var out []registry.Descriptor
	out = append(out, s.Repository.Descriptors()...)
	out = append(out, s.Package.Descriptors()...)
	out = append(out, s.File.Descriptors()...)
	out = append(out, s.Remote.Descriptors()...)
	return out
}

// Builtin returns a set with every analyzer shipped with rosmap.
func Builtin() *Set {
	s := NewSet()

	s.Repository.Register("git", func(d Deps) (contract.RepositoryAnalyzer, error) {
		return vcs.NewGit(d.Runner, d.FS), nil
	})
	s.Repository.Register("hg", func(d Deps) (contract.RepositoryAnalyzer, error) {
		return vcs.NewMercurial(d.Runner, d.FS), nil
	})
	s.Repository.Register("svn", func(d Deps) (contract.RepositoryAnalyzer, error) {
		return vcs.NewSubversion(d.Runner, d.FS), nil
	})

	s.Package.Register("package.xml", func(d Deps) (contract.PackageAnalyzer, error) {
		exclude, err := contract.NewPathMatcher(d.Config.Excludes)
		if err != nil {
			return nil, err
		}
		return manifest.NewPackageXML(d.FS, d.Config.PackageXMLTags, exclude)
	})
	s.Package.Register("manifest.xml", func(d Deps) (contract.PackageAnalyzer, error) {
		exclude, err := contract.NewPathMatcher(d.Config.Excludes)
		if err != nil {
			return nil, err
		}
		return manifest.NewManifestXML(d.FS, d.Config.ManifestXMLTags, exclude)
	})
	s.Package.Register("Cargo.toml", func(d Deps) (contract.PackageAnalyzer, error) {
		exclude, err := contract.NewPathMatcher(d.Config.Excludes)
		if err != nil {
			return nil, err
		}
		return manifest.NewCargo(d.FS, exclude)
	})
	s.Package.Register("go.mod", func(d Deps) (contract.PackageAnalyzer, error) {
		exclude, err := contract.NewPathMatcher(d.Config.Excludes)
		if err != nil {
			return nil, err
		}
		return manifest.NewGoMod(d.FS, exclude)
	})

	s.File.Register("existence", func(Deps) (contract.FileAnalyzer, error) {
		return fileanalyzer.NewExistence(), nil
	})
	s.File.Register("cpplint", func(d Deps) (contract.FileAnalyzer, error) {
		return fileanalyzer.NewCpplint(d.Runner, d.Config.CpplintPath, d.Config.CpplintFilters)
	})
	s.File.Register("rosinstall", func(d Deps) (contract.FileAnalyzer, error) {
		return fileanalyzer.NewRosinstall(d.FS), nil
	})

	s.Remote.Register("github", func(d Deps) (contract.RemoteAnalyzer, error) {
		t, err := remote.NewTransport(transportOptions(d, d.Config.GitHubRateLimit))
		if err != nil {
			return nil, err
		}
		auth := remote.GitHubAuth{
			Token:    d.Config.GitHubToken,
			Username: d.Config.GitHubUsername,
			Password: d.Config.GitHubPassword,
		}
		return remote.NewGitHub(t, auth, d.GitHubURL)
	})
	s.Remote.Register("bitbucket", func(d Deps) (contract.RemoteAnalyzer, error) {
		t, err := remote.NewTransport(transportOptions(d, d.Config.BitbucketRateLimit))
		if err != nil {
			return nil, err
		}
		return remote.NewBitbucket(t, d.BitbucketURL), nil
	})

	return s
}

func transportOptions(d Deps, rateLimit int) remote.Options {
	return remote.Options{
		RateLimit: rateLimit,
		CacheSize: d.Config.CacheSize,
		CacheTTL:  d.Config.CacheTTL,
		Cache:     d.Cache,
	}
}
