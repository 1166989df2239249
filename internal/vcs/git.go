package vcs

import (
	"context"
	"strconv"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// NewGit creates the git repository analyzer.
func NewGit(runner contract.CommandRunner, fs afero.Fs) *Analyzer {
	return &Analyzer{kind: schema.GitKind, fs: fs, backend: gitBackend{runner: runner}}
}

type gitBackend struct {
	runner contract.CommandRunner
}

func (g gitBackend) remote(ctx context.Context, dir string) (string, error) {
	out, err := g.runner.Run(ctx, dir, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", invalid(dir, "not a git work tree")
	}
	// A plain directory nested in another work tree would inherit its remote.
	if !sameDir(strings.TrimSpace(string(out)), dir) {
		return "", invalid(dir, "not the root of a git work tree")
	}
	out, err = g.runner.Run(ctx, dir, "git", "config", "--get", "remote.origin.url")
	if err != nil {
		return "", invalid(dir, "no origin remote")
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", invalid(dir, "empty origin remote")
	}
	return url, nil
}

func (g gitBackend) branchCount(ctx context.Context, dir string) (int64, error) {
	out, err := g.runner.Run(ctx, dir, "git", "branch", "-a")
	if err != nil {
		return 0, err
	}
	return int64(contract.CountLines(out)), nil
}

func (g gitBackend) contributors(ctx context.Context, dir string) (int64, error) {
	out, err := g.runner.Run(ctx, dir, "git", "shortlog", "-s", "HEAD")
	if err != nil {
		return 0, err
	}
	return int64(contract.CountLines(out)), nil
}

func (g gitBackend) lastUpdate(ctx context.Context, dir string) (int64, error) {
	out, err := g.runner.Run(ctx, dir, "git", "log", "-1", "--format=%ct")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
}
