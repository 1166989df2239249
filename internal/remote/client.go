// Package remote implements analyzers that enrich records with data from social coding platforms.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// Client performs JSON GET requests with retries over a Transport.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// NewClient creates a Client whose requests go through t.
func NewClient(t http.RoundTripper, headers map[string]string) *Client {
	return &Client{
		http:    &http.Client{Transport: t, Timeout: 30 * time.Second},
		headers: headers,
	}
}

// GetJSON fetches url and decodes the response body into v, retrying transient failures.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	return RetryWithBackoff(ctx, func() error {
		body, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		return json.NewDecoder(body).Decode(v)
	})
}

func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// onHost reports whether the URL's host is host or its www. alias.
func onHost(u *url.URL, host string) bool {
	h := strings.ToLower(u.Hostname())
	return h == host || h == "www."+host
}

// repoPath returns "owner/repo" from a canonical URL on host, or false when
// the URL does not belong to host.
func repoPath(raw, host string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !onHost(u, host) {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), true
}

// enrichAll calls enrich for every record hosted on host, after initialize has
// set the analyzer's own fields. Failures are logged and leave the record
// partially enriched.
func enrichAll(ctx context.Context, store contract.AggregationStore, kind schema.PlatformKind, host string,
	initialize func(contract.RecordWriter),
	enrich func(ctx context.Context, path string, rec contract.RecordWriter) error,
) error {
	logger := contract.LoggerFromContext(ctx).With("platform", kind)
	progress := contract.NewProgress(logger)
	enriched := 0
	for _, remote := range store.URLs() {
		u, err := url.Parse(remote)
		if err != nil || !onHost(u, host) {
			continue
		}
		path, ok := repoPath(remote, host)
		if !ok {
			logger.Warn("Skipping unrecognized repository URL", "url", remote)
			continue
		}
		rec, ok := store.Lookup(remote)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		initialize(rec)
		if err := enrich(ctx, path, rec); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Failed to enrich repository", "url", remote, "err", err)
			continue
		}
		enriched++
	}
	progress.Done("Remote enrichment finished", "repositories", enriched)
	return nil
}
