// Package vcs implements repository analyzers for git, Mercurial and Subversion checkouts.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// backend answers the per-kind questions about one checkout directory.
type backend interface {
	// remote returns the raw remote address, or an error wrapping
	// contract.ErrInvalidRepository when dir is not a valid checkout.
	remote(ctx context.Context, dir string) (string, error)
	branchCount(ctx context.Context, dir string) (int64, error)
	contributors(ctx context.Context, dir string) (int64, error)
	lastUpdate(ctx context.Context, dir string) (int64, error)
}

// Analyzer discovers checkouts of one VCS kind.
type Analyzer struct {
	kind    schema.VCSKind
	fs      afero.Fs
	backend backend
}

var _ contract.RepositoryAnalyzer = &Analyzer{} // Compile-time check

// Kind implements the RepositoryAnalyzer interface.
func (a *Analyzer) Kind() schema.VCSKind {
	return a.kind
}

// Analyze implements the RepositoryAnalyzer interface.
func (a *Analyzer) Analyze(ctx context.Context, rootPath string, store contract.AggregationStore, visit func(contract.Checkout) error) error {
	logger := contract.LoggerFromContext(ctx).With("kind", a.kind)

	dirs, err := listDirs(a.fs, rootPath)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := a.backend.remote(ctx, dir)
		if err != nil {
			logger.Warn("Skipping invalid repository", "path", dir, "err", err)
			continue
		}
		url := contract.NormalizeRemoteURL(raw)
		rec := store.Record(url)

		a.record(ctx, rec, schema.BranchCountField, dir, a.backend.branchCount)
		a.record(ctx, rec, schema.ContributorsField, dir, a.backend.contributors)
		a.record(ctx, rec, schema.LastUpdateField, dir, a.backend.lastUpdate)

		logger.Debug("Discovered repository", "path", dir, "url", url)
		if err := visit(contract.Checkout{LocalPath: dir, RemoteURL: url}); err != nil {
			return err
		}
	}
	return nil
}

// record writes one VCS-derived field if the metric command succeeds.
func (a *Analyzer) record(ctx context.Context, rec contract.RecordWriter, key schema.FieldKey, dir string, metric func(context.Context, string) (int64, error)) {
	v, err := metric(ctx, dir)
	if err != nil {
		contract.LoggerFromContext(ctx).Warn("Failed to read repository metric", "kind", a.kind, "field", key, "path", dir, "err", err)
		return
	}
	rec.InitInt(key, v)
}

// listDirs returns the direct subdirectories of root in name order.
// A missing root means no checkouts were cloned for this kind.
func listDirs(fs afero.Fs, root string) ([]string, error) {
	infos, err := afero.ReadDir(fs, root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrWorkspace, root, err)
	}
	var dirs []string
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, filepath.Join(root, info.Name()))
		}
	}
	return dirs, nil
}

func invalid(dir string, reason string) error {
	return fmt.Errorf("%w: %s: %s", contract.ErrInvalidRepository, dir, reason)
}

// sameDir reports whether top, as printed by a VCS tool, names dir. Tools
// print resolved paths, so dir is also compared after resolving symlinks.
func sameDir(top, dir string) bool {
	if top == "" {
		return false
	}
	top = filepath.Clean(top)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	if top == abs {
		return true
	}
	resolved, err := filepath.EvalSymlinks(abs)
	return err == nil && top == resolved
}
