package vcs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/recordstore"
	"github.com/huangsam/rosmap/schema"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testContext() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return contract.WithLogger(context.Background(), logger), buf
}

// collect runs a and returns the visited checkouts.
func collect(ctx context.Context, a *Analyzer, root string, store *recordstore.Store) ([]contract.Checkout, error) {
	var out []contract.Checkout
	err := a.Analyze(ctx, root, store, func(c contract.Checkout) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

func memFs(t *testing.T, dirs ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, d := range dirs {
		require.NoError(t, fs.MkdirAll(d, 0o755))
	}
	return fs
}

func TestGit_Analyze(t *testing.T) {
	ctx, buf := testContext()
	fs := memFs(t, "/ws/git/ros_comm", "/ws/git/notes")
	require.NoError(t, afero.WriteFile(fs, "/ws/git/README", []byte("x"), 0o644))

	runner := &contract.MockCommandRunner{}
	dir := "/ws/git/ros_comm"
	runner.On("Run", mock.Anything, dir, "git", "rev-parse", "--show-toplevel").Return([]byte(dir+"\n"), nil)
	runner.On("Run", mock.Anything, dir, "git", "config", "--get", "remote.origin.url").Return([]byte("git@github.com:ros/ros_comm.git\n"), nil)
	runner.On("Run", mock.Anything, dir, "git", "branch", "-a").Return([]byte("* main\n  remotes/origin/main\n  remotes/origin/noetic\n"), nil)
	runner.On("Run", mock.Anything, dir, "git", "shortlog", "-s", "HEAD").Return([]byte("  10\tAlice\n   2\tBob\n"), nil)
	runner.On("Run", mock.Anything, dir, "git", "log", "-1", "--format=%ct").Return([]byte("1700000000\n"), nil)
	runner.On("Run", mock.Anything, "/ws/git/notes", "git", "rev-parse", "--show-toplevel").
		Return([]byte(nil), &contract.CommandError{Name: "git", ExitCode: 128})

	store := recordstore.New()
	checkouts, err := collect(ctx, NewGit(runner, fs), "/ws/git", store)
	require.NoError(t, err)

	url := "https://github.com/ros/ros_comm"
	assert.Equal(t, []contract.Checkout{{LocalPath: dir, RemoteURL: url}}, checkouts)
	require.Equal(t, []string{url}, store.URLs())

	w, _ := store.Lookup(url)
	rec := w.Snapshot()
	assert.Equal(t, int64(3), rec.Ints[schema.BranchCountField])
	assert.Equal(t, int64(2), rec.Ints[schema.ContributorsField])
	assert.Equal(t, int64(1700000000), rec.Ints[schema.LastUpdateField])
	assert.Contains(t, buf.String(), "Skipping invalid repository")
	runner.AssertExpectations(t)
}

func TestGit_NestedDirectoryIsNotACheckout(t *testing.T) {
	ctx, buf := testContext()
	fs := memFs(t, "/ws/git/not_a_checkout")
	dir := "/ws/git/not_a_checkout"

	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, dir, "git", "rev-parse", "--show-toplevel").Return([]byte("/ws\n"), nil)

	store := recordstore.New()
	checkouts, err := collect(ctx, NewGit(runner, fs), "/ws/git", store)
	require.NoError(t, err)
	assert.Empty(t, checkouts)
	assert.Equal(t, 0, store.Len())
	assert.Contains(t, buf.String(), "not the root of a git work tree")
	runner.AssertNotCalled(t, "Run", mock.Anything, dir, "git", "config", "--get", "remote.origin.url")
}

func TestSameDir(t *testing.T) {
	assert.True(t, sameDir("/ws/git/a", "/ws/git/a"))
	assert.True(t, sameDir("/ws/git/a/", "/ws/git/a/"))
	assert.False(t, sameDir("/ws", "/ws/git/a"))
	assert.False(t, sameDir("", "/ws/git/a"))
}

func TestGit_MetricFailureLeavesFieldAbsent(t *testing.T) {
	ctx, buf := testContext()
	fs := memFs(t, "/ws/git/a")
	dir := "/ws/git/a"

	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, dir, "git", "rev-parse", "--show-toplevel").Return([]byte(dir), nil)
	runner.On("Run", mock.Anything, dir, "git", "config", "--get", "remote.origin.url").Return([]byte("https://github.com/ros/a.git"), nil)
	runner.On("Run", mock.Anything, dir, "git", "branch", "-a").Return([]byte("* main\n"), nil)
	runner.On("Run", mock.Anything, dir, "git", "shortlog", "-s", "HEAD").Return([]byte(nil), errors.New("boom"))
	runner.On("Run", mock.Anything, dir, "git", "log", "-1", "--format=%ct").Return([]byte(""), nil)

	store := recordstore.New()
	_, err := collect(ctx, NewGit(runner, fs), "/ws/git", store)
	require.NoError(t, err)

	w, ok := store.Lookup("https://github.com/ros/a")
	require.True(t, ok)
	rec := w.Snapshot()
	assert.Equal(t, int64(1), rec.Ints[schema.BranchCountField])
	_, ok = rec.Int(schema.ContributorsField)
	assert.False(t, ok)
	_, ok = rec.Int(schema.LastUpdateField)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "Failed to read repository metric")
}

func TestGit_SameRemoteTwiceSharesRecord(t *testing.T) {
	ctx, _ := testContext()
	fs := memFs(t, "/ws/git/a", "/ws/git/b")

	runner := &contract.MockCommandRunner{}
	for i, dir := range []string{"/ws/git/a", "/ws/git/b"} {
		runner.On("Run", mock.Anything, dir, "git", "rev-parse", "--show-toplevel").Return([]byte(dir), nil)
		runner.On("Run", mock.Anything, dir, "git", "config", "--get", "remote.origin.url").Return([]byte("https://github.com/ros/a"), nil)
		runner.On("Run", mock.Anything, dir, "git", "branch", "-a").Return([]byte("* main\n"), nil)
		runner.On("Run", mock.Anything, dir, "git", "shortlog", "-s", "HEAD").Return([]byte("1\tA\n"), nil)
		runner.On("Run", mock.Anything, dir, "git", "log", "-1", "--format=%ct").Return([]byte([]string{"100", "200"}[i]), nil)
	}

	store := recordstore.New()
	checkouts, err := collect(ctx, NewGit(runner, fs), "/ws/git", store)
	require.NoError(t, err)
	assert.Len(t, checkouts, 2)
	assert.Equal(t, 1, store.Len())

	w, _ := store.Lookup("https://github.com/ros/a")
	assert.Equal(t, int64(100), w.Snapshot().Ints[schema.LastUpdateField])
}

func TestAnalyze_MissingRootIsEmpty(t *testing.T) {
	ctx, _ := testContext()
	runner := &contract.MockCommandRunner{}

	checkouts, err := collect(ctx, NewGit(runner, afero.NewMemMapFs()), "/ws/git", recordstore.New())
	require.NoError(t, err)
	assert.Empty(t, checkouts)
	assert.Empty(t, runner.Calls)
}

func TestMercurial_Analyze(t *testing.T) {
	ctx, _ := testContext()
	fs := memFs(t, "/ws/hg/geometry", "/ws/hg/local")
	dir := "/ws/hg/geometry"

	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, dir, "hg", "paths", "default").Return([]byte("https://bitbucket.org/ros/geometry\n"), nil)
	runner.On("Run", mock.Anything, dir, "hg", "branches").Return([]byte("default 10:abc\nstable 8:def\n"), nil)
	runner.On("Run", mock.Anything, dir, "hg", "log", "--template", "{author|person}\n").Return([]byte("alice\nbob\nalice\n"), nil)
	runner.On("Run", mock.Anything, dir, "hg", "log", "--limit", "1", "--template", "{date(date, '%s')}").Return([]byte("1500000000"), nil)
	runner.On("Run", mock.Anything, "/ws/hg/local", "hg", "paths", "default").Return([]byte(""), nil)

	store := recordstore.New()
	checkouts, err := collect(ctx, NewMercurial(runner, fs), "/ws/hg", store)
	require.NoError(t, err)
	require.Len(t, checkouts, 1)

	w, _ := store.Lookup("https://bitbucket.org/ros/geometry")
	rec := w.Snapshot()
	assert.Equal(t, int64(2), rec.Ints[schema.BranchCountField])
	assert.Equal(t, int64(2), rec.Ints[schema.ContributorsField])
	assert.Equal(t, int64(1500000000), rec.Ints[schema.LastUpdateField])
	assert.Equal(t, schema.MercurialKind, NewMercurial(runner, fs).Kind())
}

func TestSubversion_Analyze(t *testing.T) {
	ctx, _ := testContext()
	fs := memFs(t, "/ws/svn/driver")
	dir := "/ws/svn/driver"

	logOut := `------------------------------------------------------------------------
r3 | alice | 2020-01-01 10:00:00 +0000 (Wed, 01 Jan 2020)
------------------------------------------------------------------------
r2 | bob | 2019-12-01 10:00:00 +0000 (Sun, 01 Dec 2019)
------------------------------------------------------------------------
r1 | alice | 2019-11-01 10:00:00 +0000 (Fri, 01 Nov 2019)
------------------------------------------------------------------------
`
	xmlOut := `<?xml version="1.0" encoding="UTF-8"?>
<log>
<logentry revision="3">
<author>alice</author>
<date>2020-01-01T10:00:00.000000Z</date>
</logentry>
</log>
`
	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, dir, "svn", "info", "--show-item", "url").Return([]byte("https://svn.example.org/driver/trunk\n"), nil)
	runner.On("Run", mock.Anything, dir, "svn", "info", "--show-item", "repos-root-url").Return([]byte("https://svn.example.org/driver\n"), nil)
	runner.On("Run", mock.Anything, dir, "svn", "ls", "https://svn.example.org/driver/branches").Return([]byte("1.0/\n2.0/\n"), nil)
	runner.On("Run", mock.Anything, dir, "svn", "log", "--quiet").Return([]byte(logOut), nil)
	runner.On("Run", mock.Anything, dir, "svn", "log", "--limit", "1", "--xml", "--quiet").Return([]byte(xmlOut), nil)

	store := recordstore.New()
	_, err := collect(ctx, NewSubversion(runner, fs), "/ws/svn", store)
	require.NoError(t, err)

	w, ok := store.Lookup("https://svn.example.org/driver/trunk")
	require.True(t, ok)
	rec := w.Snapshot()
	assert.Equal(t, int64(2), rec.Ints[schema.BranchCountField])
	assert.Equal(t, int64(2), rec.Ints[schema.ContributorsField])
	assert.Equal(t, int64(1577872800), rec.Ints[schema.LastUpdateField])
}

func TestSubversion_NoBranchesDirectory(t *testing.T) {
	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, "/d", "svn", "info", "--show-item", "repos-root-url").Return([]byte("https://svn.example.org/x/"), nil)
	runner.On("Run", mock.Anything, "/d", "svn", "ls", "https://svn.example.org/x/branches").
		Return([]byte(nil), &contract.CommandError{Name: "svn", ExitCode: 1})

	n, err := svnBackend{runner: runner}.branchCount(context.Background(), "/d")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalyze_VisitErrorStops(t *testing.T) {
	ctx, _ := testContext()
	fs := memFs(t, "/ws/hg/a", "/ws/hg/b")
	runner := &contract.MockCommandRunner{}
	runner.On("Run", mock.Anything, mock.Anything, "hg", "paths", "default").Return([]byte("https://bitbucket.org/x/y"), nil)
	runner.On("Run", mock.Anything, mock.Anything, "hg", mock.Anything).Return([]byte(""), errors.New("skip"))
	runner.On("Run", mock.Anything, mock.Anything, "hg", mock.Anything, mock.Anything, mock.Anything).Return([]byte(""), errors.New("skip"))
	runner.On("Run", mock.Anything, mock.Anything, "hg", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte(""), errors.New("skip"))

	stop := errors.New("stop")
	visits := 0
	err := NewMercurial(runner, fs).Analyze(ctx, "/ws/hg", recordstore.New(), func(contract.Checkout) error {
		visits++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visits)
}
