package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
	"golang.org/x/oauth2"
)

const githubHost = "github.com"

// GitHub enriches records hosted on github.com through the REST API.
type GitHub struct {
	client *github.Client
}

var _ contract.RemoteAnalyzer = &GitHub{} // Compile-time check

// GitHubAuth holds the GitHub credentials. A token is preferred; otherwise
// Username and Password select basic auth. All empty means anonymous access.
type GitHubAuth struct {
	Token    string
	Username string
	Password string
}

// NewGitHub creates the GitHub analyzer. An empty baseURL selects api.github.com.
func NewGitHub(t http.RoundTripper, auth GitHubAuth, baseURL string) (*GitHub, error) {
	httpClient := &http.Client{Transport: t}
	switch {
	case auth.Token != "":
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token}))
	case auth.Username != "":
		basic := &github.BasicAuthTransport{Username: auth.Username, Password: auth.Password, Transport: t}
		httpClient = basic.Client()
	}
	client := github.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API url %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}
	return &GitHub{client: client}, nil
}

// Kind implements the RemoteAnalyzer interface.
func (g *GitHub) Kind() schema.PlatformKind {
	return schema.GitHubKind
}

// AnalyzeRepositories implements the RemoteAnalyzer interface.
func (g *GitHub) AnalyzeRepositories(ctx context.Context, store contract.AggregationStore) error {
	return enrichAll(ctx, store, schema.GitHubKind, githubHost, g.initializeFields, g.enrich)
}

// initializeFields sets the GitHub counters and duration sequence to their defaults if absent.
func (g *GitHub) initializeFields(rec contract.RecordWriter) {
	rec.InitInt(schema.OpenIssuesField, 0)
	rec.InitInt(schema.OpenPullRequestsField, 0)
	rec.InitInt(schema.ClosedPullRequestsField, 0)
	rec.InitSeries(schema.IssueDurationsField)
}

func (g *GitHub) enrich(ctx context.Context, path string, rec contract.RecordWriter) error {
	owner, repo, _ := strings.Cut(path, "/")

	var repository *github.Repository
	err := RetryWithBackoff(ctx, func() error {
		r, resp, err := g.client.Repositories.Get(ctx, owner, repo)
		repository = r
		return classify(ctx, resp, err)
	})
	if err != nil {
		rec.InitInt(schema.StarsField, -1)
		return fmt.Errorf("repository: %w", err)
	}
	rec.InitInt(schema.StarsField, int64(repository.GetStargazersCount()))

	err = g.issues(ctx, owner, repo, "closed", func(issue *github.Issue) {
		if issue.IsPullRequest() {
			rec.AddInt(schema.ClosedPullRequestsField, 1)
			return
		}
		duration := issue.GetClosedAt().Sub(issue.GetCreatedAt().Time)
		rec.AppendSeries(schema.IssueDurationsField, duration.Seconds())
	})
	if err != nil {
		return fmt.Errorf("closed issues: %w", err)
	}

	err = g.issues(ctx, owner, repo, "open", func(issue *github.Issue) {
		if issue.IsPullRequest() {
			rec.AddInt(schema.OpenPullRequestsField, 1)
			return
		}
		rec.AddInt(schema.OpenIssuesField, 1)
	})
	if err != nil {
		return fmt.Errorf("open issues: %w", err)
	}
	return nil
}

// issues visits every issue and pull request in state, one page at a time.
func (g *GitHub) issues(ctx context.Context, owner, repo, state string, visit func(*github.Issue)) error {
	opts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		var page []*github.Issue
		var resp *github.Response
		err := RetryWithBackoff(ctx, func() error {
			var err error
			page, resp, err = g.client.Issues.ListByRepo(ctx, owner, repo, opts)
			return classify(ctx, resp, err)
		})
		if err != nil {
			return err
		}
		for _, issue := range page {
			visit(issue)
		}
		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// classify maps go-github failures onto the package's error kinds.
func classify(ctx context.Context, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return err
	}
	if resp == nil {
		return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case resp.StatusCode >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	default:
		return err
	}
}
