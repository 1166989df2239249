// Package core has the orchestration pipeline that drives analyzers over a workspace.
package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/plugins"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Option customizes a Run.
type Option func(*pipeline)

// WithFS sets the filesystem used to build per-repository file lists.
func WithFS(fs afero.Fs) Option {
	return func(p *pipeline) { p.fs = fs }
}

// SkipDiscovery runs remote enrichment over the records already in the store,
// as when resuming from a stored local checkpoint. The local checkpoint is
// still written so the new run is complete.
func SkipDiscovery() Option {
	return func(p *pipeline) { p.skipDiscovery = true }
}

type pipeline struct {
	cfg           *contract.Config
	analyzers     plugins.Instances
	store         contract.AggregationStore
	fs            afero.Fs
	exclude       *contract.PathMatcher
	skipDiscovery bool
	checkouts     atomic.Int64
}

// Run executes the analysis phases in order: discovery with per-repository
// package and file analysis, a local checkpoint, remote enrichment and a final
// checkpoint. It returns the last serialized record set.
//
// Only structural failures are returned: an unreadable workspace root, a failed
// checkpoint or a cancelled context. Plugin and repository failures are logged.
func Run(ctx context.Context, cfg *contract.Config, analyzers plugins.Instances, store contract.AggregationStore, sink contract.CheckpointSink, opts ...Option) ([]schema.RepositoryRecord, error) {
	exclude, err := contract.NewPathMatcher(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	p := &pipeline{cfg: cfg, analyzers: analyzers, store: store, fs: afero.NewOsFs(), exclude: exclude}
	for _, opt := range opts {
		opt(p)
	}
	logger := contract.LoggerFromContext(ctx)

	progress := contract.NewProgress(logger)
	if p.skipDiscovery {
		logger.Info("Skipping local analysis", "repositories", store.Len())
	} else if err := p.analyzeLocal(ctx); err != nil {
		return nil, err
	}
	records := Serialize(store)
	progress.Done("Local analysis finished", "checkouts", p.checkouts.Load(), "repositories", len(records))

	if err := sink.WriteCheckpoint(ctx, schema.LocalStage, records); err != nil {
		return nil, fmt.Errorf("write %s checkpoint: %w", schema.LocalStage, err)
	}
	if p.cfg.SkipRemote {
		logger.Info("Skipping remote enrichment")
		return records, nil
	}

	progress = contract.NewProgress(logger)
	if err := p.enrich(ctx); err != nil {
		return nil, err
	}
	records = Serialize(store)
	progress.Done("Remote enrichment finished", "repositories", len(records))

	if err := sink.WriteCheckpoint(ctx, schema.RemoteStage, records); err != nil {
		return nil, fmt.Errorf("write %s checkpoint: %w", schema.RemoteStage, err)
	}
	return records, nil
}

// analyzeLocal discovers the checkouts of every configured VCS kind and
// analyzes each one as soon as it is discovered.
func (p *pipeline) analyzeLocal(ctx context.Context) error {
	logger := contract.LoggerFromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Workers, 1))
	visit := func(co contract.Checkout) error {
		p.checkouts.Add(1)
		if p.cfg.Workers <= 1 {
			p.analyzeCheckout(gctx, co)
			return gctx.Err()
		}
		g.Go(func() error {
			p.analyzeCheckout(gctx, co)
			return gctx.Err()
		})
		return nil
	}

	for _, kind := range p.cfg.VCSKinds {
		analyzer, ok := p.repositoryAnalyzer(kind)
		if !ok {
			logger.Warn("No repository analyzer registered", "kind", kind)
			continue
		}
		root := p.cfg.RootFor(kind)
		logger.Debug("Discovering repositories", "kind", kind, "path", root)
		if err := analyzer.Analyze(gctx, root, p.store, visit); err != nil {
			_ = g.Wait()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("discover %s repositories: %w", kind, err)
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *pipeline) repositoryAnalyzer(kind schema.VCSKind) (contract.RepositoryAnalyzer, bool) {
	for _, a := range p.analyzers.Repository {
		if a.Kind() == kind {
			return a, true
		}
	}
	return nil, false
}

// analyzeCheckout runs every package analyzer and then every file analyzer
// against one working tree.
func (p *pipeline) analyzeCheckout(ctx context.Context, co contract.Checkout) {
	logger := contract.LoggerFromContext(ctx).With("url", co.RemoteURL)
	rec := p.store.Record(co.RemoteURL)

	for _, analyzer := range p.analyzers.Package {
		packages, err := analyzer.Analyze(ctx, co.LocalPath)
		if err != nil {
			logger.Warn("Package analysis failed", "analyzer", analyzer.Name(), "path", co.LocalPath, "err", err)
			continue
		}
		// Analyzers return packages keyed by name, so name order is the only
		// order that is stable across runs.
		for _, name := range slices.Sorted(maps.Keys(packages)) {
			rec.AppendPackages(packages[name])
		}
	}

	files, err := listFiles(p.fs, co.LocalPath, p.exclude)
	if err != nil {
		logger.Warn("Failed to list files", "path", co.LocalPath, "err", err)
		return
	}
	for _, analyzer := range p.analyzers.File {
		analyzer.InitializeFields(rec)
		if err := analyzer.AnalyzeFiles(ctx, files, rec); err != nil {
			logger.Warn("File analysis failed", "analyzer", analyzer.Name(), "path", co.LocalPath, "err", err)
		}
	}
	logger.Debug("Analyzed repository", "path", co.LocalPath, "files", len(files))
}

// enrich runs the remote analyzers of every configured platform concurrently.
// Platforms filter disjoint record subsets.
func (p *pipeline) enrich(ctx context.Context) error {
	logger := contract.LoggerFromContext(ctx)

	var selected []contract.RemoteAnalyzer
	for _, kind := range p.cfg.Platforms {
		found := false
		for _, a := range p.analyzers.Remote {
			if a.Kind() == kind {
				selected = append(selected, a)
				found = true
			}
		}
		if !found {
			logger.Warn("No remote analyzer registered", "platform", kind)
		}
	}

	errs := make([]error, len(selected))
	var wg sync.WaitGroup
	for i, analyzer := range selected {
		wg.Go(func() {
			errs[i] = analyzer.AnalyzeRepositories(ctx, p.store)
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Remote analysis failed", "platform", selected[i].Kind(), "err", err)
		}
	}
	return nil
}
