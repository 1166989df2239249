package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// DefaultBitbucketURL is the Bitbucket Cloud API root.
const DefaultBitbucketURL = "https://api.bitbucket.org"

const bitbucketHost = "bitbucket.org"

// Bitbucket enriches records hosted on bitbucket.org.
type Bitbucket struct {
	client  *Client
	baseURL string
}

var _ contract.RemoteAnalyzer = &Bitbucket{} // Compile-time check

// NewBitbucket creates the Bitbucket analyzer. An empty baseURL selects Bitbucket Cloud.
func NewBitbucket(t http.RoundTripper, baseURL string) *Bitbucket {
	if baseURL == "" {
		baseURL = DefaultBitbucketURL
	}
	return &Bitbucket{client: NewClient(t, nil), baseURL: strings.TrimRight(baseURL, "/")}
}

// Kind implements the RemoteAnalyzer interface.
func (b *Bitbucket) Kind() schema.PlatformKind {
	return schema.BitbucketKind
}

// AnalyzeRepositories implements the RemoteAnalyzer interface.
func (b *Bitbucket) AnalyzeRepositories(ctx context.Context, store contract.AggregationStore) error {
	return enrichAll(ctx, store, schema.BitbucketKind, bitbucketHost, b.initializeFields, b.enrich)
}

// initializeFields sets the counters Bitbucket reports. Closed pull requests
// are not fetched, so that field is left absent.
func (b *Bitbucket) initializeFields(rec contract.RecordWriter) {
	rec.InitInt(schema.OpenIssuesField, 0)
	rec.InitInt(schema.OpenPullRequestsField, 0)
	rec.InitSeries(schema.IssueDurationsField)
}

type bitbucketWatchers struct {
	Size int64 `json:"size"`
}

type bitbucketIssue struct {
	State     string    `json:"state"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

type bitbucketPage[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

func (b *Bitbucket) enrich(ctx context.Context, path string, rec contract.RecordWriter) error {
	var watchers bitbucketWatchers
	if err := b.client.GetJSON(ctx, b.repoURL(path, "watchers"), &watchers); err != nil {
		rec.InitInt(schema.StarsField, -1)
		return fmt.Errorf("watchers: %w", err)
	}
	rec.InitInt(schema.StarsField, watchers.Size)

	err := paginate(ctx, b.client, b.repoURL(path, "issues"), func(issue bitbucketIssue) {
		switch issue.State {
		case "open", "new":
			rec.AddInt(schema.OpenIssuesField, 1)
		default:
			rec.AppendSeries(schema.IssueDurationsField, issue.UpdatedOn.Sub(issue.CreatedOn).Seconds())
		}
	})
	// Repositories with the issue tracker disabled answer 404.
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("issues: %w", err)
	}

	err = paginate(ctx, b.client, b.repoURL(path, "pullrequests")+"?state=OPEN", func(bitbucketIssue) {
		rec.AddInt(schema.OpenPullRequestsField, 1)
	})
	if err != nil {
		return fmt.Errorf("pull requests: %w", err)
	}
	return nil
}

func (b *Bitbucket) repoURL(path, resource string) string {
	return b.baseURL + "/2.0/repositories/" + path + "/" + resource
}

// paginate follows the next links of a Bitbucket collection.
func paginate[T any](ctx context.Context, c *Client, url string, visit func(T)) error {
	for url != "" {
		var page bitbucketPage[T]
		if err := c.GetJSON(ctx, url, &page); err != nil {
			return err
		}
		for _, v := range page.Values {
			visit(v)
		}
		url = page.Next
	}
	return nil
}
