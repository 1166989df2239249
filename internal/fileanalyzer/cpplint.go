package fileanalyzer

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// cpplintBatchSize bounds the number of files passed to one cpplint invocation.
const cpplintBatchSize = 64

var (
	cppExtensions    = map[string]struct{}{".h": {}, ".hpp": {}, ".cpp": {}}
	totalErrorsRegex = regexp.MustCompile(`Total errors found: (\d+)`)
)

// ErrCpplintDisabled is returned by NewCpplint when no binary is configured.
var ErrCpplintDisabled = errors.New("cpplint binary not configured")

// Cpplint sums the style errors cpplint reports for C++ sources.
type Cpplint struct {
	runner  contract.CommandRunner
	binary  string
	filters []string
}

var _ contract.FileAnalyzer = &Cpplint{} // Compile-time check

// NewCpplint creates the cpplint analyzer for the given binary path.
func NewCpplint(runner contract.CommandRunner, binary string, filters []string) (*Cpplint, error) {
	if binary == "" {
		return nil, ErrCpplintDisabled
	}
	return &Cpplint{runner: runner, binary: binary, filters: filters}, nil
}

// Name implements the FileAnalyzer interface.
func (c *Cpplint) Name() string {
	return "cpplint"
}

// InitializeFields implements the FileAnalyzer interface.
func (c *Cpplint) InitializeFields(rec contract.RecordWriter) {
	rec.InitInt(schema.CpplintErrorsField, 0)
}

// AnalyzeFiles implements the FileAnalyzer interface.
// A batch whose output cannot be parsed is logged and contributes nothing.
func (c *Cpplint) AnalyzeFiles(ctx context.Context, files []string, rec contract.RecordWriter) error {
	logger := contract.LoggerFromContext(ctx)

	var sources []string
	for _, f := range files {
		if _, ok := cppExtensions[strings.ToLower(filepath.Ext(f))]; ok {
			sources = append(sources, f)
		}
	}

	for start := 0; start < len(sources); start += cpplintBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := sources[start:min(start+cpplintBatchSize, len(sources))]
		n, err := c.lint(ctx, batch)
		if err != nil {
			logger.Warn("cpplint failed", "url", rec.URL(), "files", len(batch), "err", err)
			continue
		}
		rec.AddInt(schema.CpplintErrorsField, n)
	}
	return nil
}

// lint runs one cpplint invocation. cpplint exits non-zero when it finds
// errors and writes its summary to stderr.
func (c *Cpplint) lint(ctx context.Context, files []string) (int64, error) {
	args := make([]string, 0, len(files)+1)
	if len(c.filters) > 0 {
		args = append(args, "--filter="+strings.Join(c.filters, ","))
	}
	args = append(args, files...)

	_, err := c.runner.Run(ctx, filepath.Dir(files[0]), c.binary, args...)
	if err == nil {
		return 0, nil
	}
	var cmdErr *contract.CommandError
	if !errors.As(err, &cmdErr) {
		return 0, err
	}
	m := totalErrorsRegex.FindSubmatch(cmdErr.Stderr)
	if m == nil {
		return 0, err
	}
	return strconv.ParseInt(string(m[1]), 10, 64)
}
