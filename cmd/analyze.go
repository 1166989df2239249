package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/rosmap/core"
	"github.com/huangsam/rosmap/internal/artifact"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/iocache"
	"github.com/huangsam/rosmap/internal/outwriter"
	"github.com/huangsam/rosmap/internal/plugins"
	"github.com/huangsam/rosmap/internal/recordstore"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// analyzeCmd runs discovery, local analysis and remote enrichment.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [workspace]",
	Short: "Analyze every cloned repository in the workspace.",
	Long: `Scan <workspace>/<repository-folder>/{git,hg,svn} for checkouts and build one
record per remote URL.

Phases:
- Discovery: every VCS analyzer lists its checkouts and records branch count,
  contributor count and last update
- Local analysis: package manifests and project files of each checkout
- Local checkpoint: records are written to every configured sink
- Remote enrichment: GitHub and Bitbucket metadata (stars, issues, pull requests)
- Remote checkpoint: the enriched records are written again

With --load-existing the workspace is not scanned. The latest local checkpoint
in the run store is loaded and only remote enrichment runs, which resumes a run
that stopped after its local checkpoint.

Checkpoints go to --output-file (overwritten per stage), to the run store,
and to S3 when --s3-endpoint and --s3-bucket are set. Without an output file
only the final checkpoint is printed to stdout.

Examples:
  # Analyze ./ws/repositories and print JSON
  rosmap analyze ./ws

  # Local analysis only, as a summary table
  rosmap analyze ./ws --skip-remote --output text

  # Enrich the last stored local checkpoint without rescanning
  rosmap analyze ./ws --load-existing

  # Parquet checkpoints with 8 workers
  rosmap analyze ./ws --output parquet --output-file ecosystem.parquet --workers 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := sharedSetup(rootCtx, cmd, args)
		if err != nil {
			return err
		}
		return runAnalyze(ctx, cfg, cacheManager)
	},
}

// runAnalyze wires the analyzers and sinks for one run and executes the pipeline.
func runAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	logger := contract.LoggerFromContext(ctx)
	start := time.Now()
	progress := contract.NewProgress(logger)

	deps := plugins.Deps{
		Config: cfg,
		Runner: contract.NewLocalRunner(),
		FS:     afero.NewOsFs(),
	}
	if mgr != nil {
		deps.Cache = mgr.GetCacheStore()
	}
	analyzers := plugins.Builtin().Instantiate(logger, deps)

	store, opts, err := initialStore(cfg, mgr)
	if err != nil {
		return err
	}

	sinks := core.MultiSink{outwriter.NewCheckpointWriter(cfg)}
	var runSink *iocache.RunSink
	runLabel := start.UTC().Format("20060102T150405Z")
	if mgr != nil && mgr.GetRunStore() != nil {
		rs, err := iocache.BeginRunSink(mgr.GetRunStore(), start, cfg.Params())
		if err != nil {
			return fmt.Errorf("failed to begin run: %w", err)
		}
		runSink = rs
		if runSink.RunID() > 0 {
			runLabel = fmt.Sprintf("run-%d", runSink.RunID())
		}
		sinks = append(sinks, runSink)
	}
	if cfg.S3.Enabled() {
		uploader, err := artifact.NewUploader(cfg, runLabel)
		if err != nil {
			return err
		}
		sinks = append(sinks, uploader)
	}

	records, err := core.Run(ctx, cfg, analyzers, store, sinks, opts...)
	if err != nil {
		return err
	}
	if runSink != nil {
		if err := runSink.Finish(time.Now()); err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}
	progress.Done("Analysis complete", "repositories", len(records))
	return nil
}

// initialStore returns an empty store, or with --load-existing a store seeded
// from the latest stored local checkpoint together with the option that skips
// discovery.
func initialStore(cfg *contract.Config, mgr contract.CacheManager) (*recordstore.Store, []core.Option, error) {
	if !cfg.LoadExisting {
		return recordstore.New(), nil, nil
	}
	if mgr == nil || mgr.GetRunStore() == nil {
		return nil, nil, errors.New("--load-existing requires a run store (--run-backend cannot be none)")
	}
	records, err := mgr.GetRunStore().LatestRecords(schema.LocalStage)
	if errors.Is(err, iocache.ErrNoRuns) {
		return nil, nil, errors.New("no stored local checkpoint to resume from; run analyze without --load-existing first")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load local checkpoint: %w", err)
	}
	return recordstore.Load(records), []core.Option{core.SkipDiscovery()}, nil
}
