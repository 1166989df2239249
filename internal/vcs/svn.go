package vcs

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
)

// NewSubversion creates the Subversion repository analyzer.
func NewSubversion(runner contract.CommandRunner, fs afero.Fs) *Analyzer {
	return &Analyzer{kind: schema.SubversionKind, fs: fs, backend: svnBackend{runner: runner}}
}

type svnBackend struct {
	runner contract.CommandRunner
}

func (s svnBackend) remote(ctx context.Context, dir string) (string, error) {
	out, err := s.runner.Run(ctx, dir, "svn", "info", "--show-item", "url")
	if err != nil {
		return "", invalid(dir, "not a working copy")
	}
	url := strings.TrimSpace(string(out))
	if url == "" {
		return "", invalid(dir, "empty url")
	}
	return url, nil
}

// branchCount lists the conventional branches directory under the repository root.
// A repository without one has zero branches.
func (s svnBackend) branchCount(ctx context.Context, dir string) (int64, error) {
	out, err := s.runner.Run(ctx, dir, "svn", "info", "--show-item", "repos-root-url")
	if err != nil {
		return 0, err
	}
	root := strings.TrimRight(strings.TrimSpace(string(out)), "/")
	out, err = s.runner.Run(ctx, dir, "svn", "ls", root+"/branches")
	var cmdErr *contract.CommandError
	if errors.As(err, &cmdErr) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(contract.CountLines(out)), nil
}

// contributors counts distinct authors in "rN | author | date" header lines.
func (s svnBackend) contributors(ctx context.Context, dir string) (int64, error) {
	out, err := s.runner.Run(ctx, dir, "svn", "log", "--quiet")
	if err != nil {
		return 0, err
	}
	authors := make(map[string]struct{})
	for line := range strings.SplitSeq(string(out), "\n") {
		if !strings.HasPrefix(line, "r") {
			continue
		}
		parts := strings.Split(line, " | ")
		if len(parts) < 2 {
			continue
		}
		authors[strings.TrimSpace(parts[1])] = struct{}{}
	}
	return int64(len(authors)), nil
}

type svnLog struct {
	Entries []struct {
		Date string `xml:"date"`
	} `xml:"logentry"`
}

func (s svnBackend) lastUpdate(ctx context.Context, dir string) (int64, error) {
	out, err := s.runner.Run(ctx, dir, "svn", "log", "--limit", "1", "--xml", "--quiet")
	if err != nil {
		return 0, err
	}
	var parsed svnLog
	if err := xml.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parse svn log: %w", err)
	}
	if len(parsed.Entries) == 0 {
		return 0, errors.New("svn log returned no entries")
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(parsed.Entries[0].Date))
	if err != nil {
		return 0, fmt.Errorf("parse svn date: %w", err)
	}
	return ts.Unix(), nil
}
