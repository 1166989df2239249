package vcs

import (
	"context"
	"strconv"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// NewMercurial creates the Mercurial repository analyzer.
func NewMercurial(runner contract.CommandRunner, fs afero.Fs) *Analyzer {
	return &Analyzer{kind: schema.MercurialKind, fs: fs, backend: hgBackend{runner: runner}}
}

type hgBackend struct {
	runner contract.CommandRunner
}

// remote uses the default path. A clone without one cannot be keyed and is invalid.
func (h hgBackend) remote(ctx context.Context, dir string) (string, error) {
	out, err := h.runner.Run(ctx, dir, "hg", "paths", "default")
	if err != nil {
		return "", invalid(dir, "no default path")
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", invalid(dir, "empty default path")
	}
	return url, nil
}

func (h hgBackend) branchCount(ctx context.Context, dir string) (int64, error) {
	out, err := h.runner.Run(ctx, dir, "hg", "branches")
	if err != nil {
		return 0, err
	}
	return int64(contract.CountLines(out)), nil
}

func (h hgBackend) contributors(ctx context.Context, dir string) (int64, error) {
	out, err := h.runner.Run(ctx, dir, "hg", "log", "--template", "{author|person}\n")
	if err != nil {
		return 0, err
	}
	return int64(contract.CountUniqueLines(out)), nil
}

func (h hgBackend) lastUpdate(ctx context.Context, dir string) (int64, error) {
	out, err := h.runner.Run(ctx, dir, "hg", "log", "--limit", "1", "--template", "{date(date, '%s')}")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
}
