package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// LocalRunner implements the CommandRunner interface by executing
// binaries installed on the local machine.
type LocalRunner struct{}

var _ CommandRunner = &LocalRunner{} // Compile-time check

// NewLocalRunner creates a new instance of the local command runner.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// CommandError is returned when a command exits with a non-zero status.
// Tools such as cpplint report results on stderr with a failing status.
type CommandError struct {
	Name     string
	Dir      string
	ExitCode int
	Stderr   []byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with status %d in %q: %s", e.Name, e.ExitCode, e.Dir, strings.TrimSpace(string(e.Stderr)))
}

// Run executes a command in dir and returns its stdout output.
func (r *LocalRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &CommandError{Name: name, Dir: dir, ExitCode: exitErr.ExitCode(), Stderr: exitErr.Stderr}
	} else if err != nil {
		return nil, fmt.Errorf("%s command failed: %w. Ensure %s is installed and available on your PATH", name, err, name)
	}
	return out, nil
}

// CountLines returns the number of non-empty lines in out.
func CountLines(out []byte) int {
	n := 0
	for line := range strings.SplitSeq(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// CountUniqueLines returns the number of distinct non-empty trimmed lines in out.
func CountUniqueLines(out []byte) int {
	seen := make(map[string]struct{})
	for line := range strings.SplitSeq(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			seen[line] = struct{}{}
		}
	}
	return len(seen)
}
