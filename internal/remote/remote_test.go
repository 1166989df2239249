package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/recordstore"
	"github.com/huangsam/rosmap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	retryDelay = time.Millisecond
}

func testContext() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return contract.WithLogger(context.Background(), logger), buf
}

func newTestTransport(t *testing.T, cache contract.CacheStore) *Transport {
	t.Helper()
	tr, err := NewTransport(Options{CacheSize: 16, Cache: cache})
	require.NoError(t, err)
	return tr
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGitHub_Enrich(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/ros/ros_comm":
			writeJSON(w, map[string]any{"name": "ros_comm", "stargazers_count": 42})
		case "/repos/ros/ros_comm/issues":
			state, page := r.URL.Query().Get("state"), r.URL.Query().Get("page")
			switch {
			case state == "closed" && page == "":
				w.Header().Set("Link", fmt.Sprintf(`<%s/repos/ros/ros_comm/issues?state=closed&per_page=100&page=2>; rel="next"`, srv.URL))
				writeJSON(w, []map[string]any{
					{"number": 1, "created_at": "2020-01-01T00:00:00Z", "closed_at": "2020-01-02T00:00:00Z"},
					{"number": 2, "pull_request": map[string]any{"url": "x"}, "created_at": "2020-01-01T00:00:00Z", "closed_at": "2020-01-01T01:00:00Z"},
				})
			case state == "closed" && page == "2":
				writeJSON(w, []map[string]any{
					{"number": 3, "created_at": "2020-01-01T00:00:00Z", "closed_at": "2020-01-01T00:01:00Z"},
				})
			case state == "open":
				writeJSON(w, []map[string]any{
					{"number": 4},
					{"number": 5, "pull_request": map[string]any{"url": "y"}},
					{"number": 6},
				})
			default:
				http.Error(w, "unexpected", http.StatusBadRequest)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://github.com/ros/ros_comm")
	store.Record("https://bitbucket.org/ros/other")

	gh, err := NewGitHub(newTestTransport(t, nil), GitHubAuth{Token: "secret"}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, gh.AnalyzeRepositories(ctx, store))

	w, _ := store.Lookup("https://github.com/ros/ros_comm")
	rec := w.Snapshot()
	assert.Equal(t, int64(42), rec.Ints[schema.StarsField])
	assert.Equal(t, int64(1), rec.Ints[schema.ClosedPullRequestsField])
	assert.Equal(t, []float64{86400, 60}, rec.Series[schema.IssueDurationsField])
	assert.Equal(t, int64(2), rec.Ints[schema.OpenIssuesField])
	assert.Equal(t, int64(1), rec.Ints[schema.OpenPullRequestsField])

	other, _ := store.Lookup("https://bitbucket.org/ros/other")
	assert.Empty(t, other.Snapshot().Ints)
}

func TestGitHub_FailureIsolatesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/ros/good":
			writeJSON(w, map[string]any{"stargazers_count": 7})
		case "/repos/ros/good/issues":
			writeJSON(w, []map[string]any{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx, buf := testContext()
	store := recordstore.New()
	store.Record("https://github.com/ros/gone")
	store.Record("https://github.com/ros/good")

	gh, err := NewGitHub(newTestTransport(t, nil), GitHubAuth{}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, gh.AnalyzeRepositories(ctx, store))

	gone, _ := store.Lookup("https://github.com/ros/gone")
	rec := gone.Snapshot()
	assert.Equal(t, int64(-1), rec.Ints[schema.StarsField])
	assert.Equal(t, int64(0), rec.Ints[schema.OpenIssuesField])
	assert.Equal(t, []float64{}, rec.Series[schema.IssueDurationsField])

	good, _ := store.Lookup("https://github.com/ros/good")
	assert.Equal(t, int64(7), good.Snapshot().Ints[schema.StarsField])
	assert.Contains(t, buf.String(), "Failed to enrich repository")
}

func TestGitHub_StarsAreSetOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/ros/a" {
			writeJSON(w, map[string]any{"stargazers_count": 9})
			return
		}
		writeJSON(w, []map[string]any{})
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://github.com/ros/a").InitInt(schema.StarsField, 3)

	gh, err := NewGitHub(newTestTransport(t, nil), GitHubAuth{}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, gh.AnalyzeRepositories(ctx, store))

	w, _ := store.Lookup("https://github.com/ros/a")
	assert.Equal(t, int64(3), w.Snapshot().Ints[schema.StarsField])
}

func TestBitbucket_Enrich(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2.0/repositories/ros/geometry/watchers":
			writeJSON(w, map[string]any{"size": 5})
		case "/2.0/repositories/ros/geometry/issues":
			if r.URL.Query().Get("page") == "2" {
				writeJSON(w, map[string]any{"values": []map[string]any{
					{"state": "new", "created_on": "2019-01-01T00:00:00+00:00", "updated_on": "2019-01-01T00:00:00+00:00"},
				}})
				return
			}
			writeJSON(w, map[string]any{
				"values": []map[string]any{
					{"state": "open", "created_on": "2019-01-01T00:00:00+00:00", "updated_on": "2019-01-05T00:00:00+00:00"},
					{"state": "resolved", "created_on": "2019-01-01T00:00:00.000000+00:00", "updated_on": "2019-01-01T00:00:30.000000+00:00"},
				},
				"next": srv.URL + "/2.0/repositories/ros/geometry/issues?page=2",
			})
		case "/2.0/repositories/ros/geometry/pullrequests":
			assert.Equal(t, "OPEN", r.URL.Query().Get("state"))
			writeJSON(w, map[string]any{"values": []map[string]any{{"state": "OPEN"}, {"state": "OPEN"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://bitbucket.org/ros/geometry")

	require.NoError(t, NewBitbucket(newTestTransport(t, nil), srv.URL).AnalyzeRepositories(ctx, store))

	w, _ := store.Lookup("https://bitbucket.org/ros/geometry")
	rec := w.Snapshot()
	assert.Equal(t, int64(5), rec.Ints[schema.StarsField])
	assert.Equal(t, int64(2), rec.Ints[schema.OpenIssuesField])
	assert.Equal(t, []float64{30}, rec.Series[schema.IssueDurationsField])
	assert.Equal(t, int64(2), rec.Ints[schema.OpenPullRequestsField])
	assert.NotContains(t, rec.Ints, schema.ClosedPullRequestsField)
}

func TestGitHub_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "octocat", user)
		assert.Equal(t, "secret", pass)
		if r.URL.Path == "/repos/ros/a" {
			writeJSON(w, map[string]any{"stargazers_count": 2})
			return
		}
		writeJSON(w, []map[string]any{})
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://github.com/ros/a")

	gh, err := NewGitHub(newTestTransport(t, nil), GitHubAuth{Username: "octocat", Password: "secret"}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, gh.AnalyzeRepositories(ctx, store))

	w, _ := store.Lookup("https://github.com/ros/a")
	assert.Equal(t, int64(2), w.Snapshot().Ints[schema.StarsField])
}

func TestGitHub_IgnoresOtherHosts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/repos/ros/a" {
			writeJSON(w, map[string]any{"stargazers_count": 99})
			return
		}
		writeJSON(w, []map[string]any{})
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://notgithub.com/ros/a")
	store.Record("https://gitlab.com/mirror/github.com/ros/a")

	gh, err := NewGitHub(newTestTransport(t, nil), GitHubAuth{}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, gh.AnalyzeRepositories(ctx, store))

	for _, u := range store.URLs() {
		w, _ := store.Lookup(u)
		rec := w.Snapshot()
		assert.Empty(t, rec.Ints, u)
		assert.Empty(t, rec.Series, u)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestBitbucket_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2.0/repositories/ros/flaky/watchers":
			if calls.Add(1) < 3 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, map[string]any{"size": 1})
		default:
			writeJSON(w, map[string]any{"values": []any{}})
		}
	}))
	defer srv.Close()

	ctx, _ := testContext()
	store := recordstore.New()
	store.Record("https://bitbucket.org/ros/flaky")

	require.NoError(t, NewBitbucket(newTestTransport(t, nil), srv.URL).AnalyzeRepositories(ctx, store))
	w, _ := store.Lookup("https://bitbucket.org/ros/flaky")
	assert.Equal(t, int64(1), w.Snapshot().Ints[schema.StarsField])
	assert.Equal(t, int32(3), calls.Load())
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, checkStatus(http.StatusOK))
	assert.ErrorIs(t, checkStatus(http.StatusNotFound), ErrNotFound)
	assert.True(t, isRetryable(checkStatus(http.StatusBadGateway)))
	assert.False(t, isRetryable(checkStatus(http.StatusForbidden)))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return errors.New("permanent")
	})
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return &RetryableError{Err: ErrNetwork}
	})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 3, calls)
}

func TestRepoPath(t *testing.T) {
	tests := []struct {
		url  string
		host string
		want string
		ok   bool
	}{
		{"https://github.com/ros/ros_comm", githubHost, "ros/ros_comm", true},
		{"https://github.com/ros/ros_comm.git", githubHost, "ros/ros_comm", true},
		{"https://github.com/ros/ros_comm/tree/noetic", githubHost, "ros/ros_comm", true},
		{"https://github.com/ros", githubHost, "", false},
		{"https://bitbucket.org/osrf/gazebo", bitbucketHost, "osrf/gazebo", true},
		{"https://gitlab.com/a/b", githubHost, "", false},
		{"https://www.github.com/ros/geometry2", githubHost, "ros/geometry2", true},
		{"https://notgithub.com/ros/a", githubHost, "", false},
		{"https://github.com.evil.io/ros/a", githubHost, "", false},
		{"https://gitlab.com/mirror/github.com/ros/a", githubHost, "", false},
	}
	for _, tt := range tests {
		got, ok := repoPath(tt.url, tt.host)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

// memoryCache is a CacheStore backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	version map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, version: map[string]int{}}
}

func (m *memoryCache) Get(key string) ([]byte, int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, 0, 0, errors.New("miss")
	}
	return v, m.version[key], 0, nil
}

func (m *memoryCache) Set(key string, value []byte, version int, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.version[key] = version
	return nil
}

func (m *memoryCache) GetStatus() (schema.CacheStatus, error) { return schema.CacheStatus{}, nil }
func (m *memoryCache) Close() error                           { return nil }

func TestTransport_CachesSuccessfulGets(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Link", "<next>")
		writeJSON(w, map[string]any{"size": 3})
	}))
	defer srv.Close()

	durable := newMemoryCache()
	client := &http.Client{Transport: newTestTransport(t, durable)}
	for range 2 {
		resp, err := client.Get(srv.URL + "/watchers")
		require.NoError(t, err)
		var body bitbucketWatchers
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		assert.Equal(t, int64(3), body.Size)
		assert.Equal(t, "<next>", resp.Header.Get("Link"))
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, durable.entries, srv.URL+"/watchers")

	// A fresh transport reads through to the durable tier.
	client = &http.Client{Transport: newTestTransport(t, durable)}
	resp, err := client.Get(srv.URL + "/watchers")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	for range 2 {
		resp, err := client.Get(srv.URL + "/missing")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransport_ExpiresEntries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]any{})
	}))
	defer srv.Close()

	tr, err := NewTransport(Options{CacheTTL: time.Minute})
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return now }

	client := &http.Client{Transport: tr}
	for _, advance := range []time.Duration{0, 30 * time.Second, 2 * time.Minute} {
		now = now.Add(advance)
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.Equal(t, int32(2), calls.Load())
}
