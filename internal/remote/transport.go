package remote

import (
	"bytes"
	"cmp"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/huangsam/rosmap/internal/contract"
	"golang.org/x/time/rate"
)

// cacheVersion is bumped whenever cachedResponse changes shape.
const cacheVersion = 1

// cachedResponse is the stored form of a successful GET.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
	Stored int64       `json:"stored"`
}

// Options configures the transport shared by the requests to one platform.
type Options struct {
	RateLimit int                 // requests per hour, 0 means unlimited
	CacheSize int                 // in-memory entries
	CacheTTL  time.Duration       // 0 keeps entries forever
	Cache     contract.CacheStore // optional durable tier
	Base      http.RoundTripper   // defaults to http.DefaultTransport
}

// Transport throttles outgoing requests and serves repeated GETs from cache.
// Successful GET responses are kept in an LRU and, when configured, in a
// durable CacheStore so that reruns do not spend the platform's rate limit.
type Transport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	memory  *lru.Cache[string, cachedResponse]
	durable contract.CacheStore
	ttl     time.Duration
	now     func() time.Time
}

var _ http.RoundTripper = &Transport{} // Compile-time check

// NewTransport creates a Transport from opts.
func NewTransport(opts Options) (*Transport, error) {
	memory, err := lru.New[string, cachedResponse](cmp.Or(opts.CacheSize, contract.DefaultCacheSize))
	if err != nil {
		return nil, err
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		limiter: newLimiter(opts.RateLimit),
		memory:  memory,
		durable: opts.Cache,
		ttl:     opts.CacheTTL,
		now:     time.Now,
	}, nil
}

// newLimiter spreads perHour requests evenly with a small burst.
func newLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), min(perHour, 10))
}

// RoundTrip implements the http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	cacheable := req.Method == http.MethodGet
	key := req.URL.String()
	if cacheable {
		if entry, ok := t.lookup(key); ok {
			return entry.response(req), nil
		}
	}

	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil || !cacheable || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	t.store(key, cachedResponse{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, Stored: t.now().Unix()})
	return resp, nil
}

func (t *Transport) lookup(key string) (cachedResponse, bool) {
	if entry, ok := t.memory.Get(key); ok && t.fresh(entry) {
		return entry, true
	}
	if t.durable == nil {
		return cachedResponse{}, false
	}
	data, version, _, err := t.durable.Get(key)
	if err != nil || version != cacheVersion {
		return cachedResponse{}, false
	}
	var entry cachedResponse
	if err := json.Unmarshal(data, &entry); err != nil || !t.fresh(entry) {
		return cachedResponse{}, false
	}
	t.memory.Add(key, entry)
	return entry, true
}

func (t *Transport) store(key string, entry cachedResponse) {
	t.memory.Add(key, entry)
	if t.durable == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = t.durable.Set(key, data, cacheVersion, entry.Stored)
}

func (t *Transport) fresh(entry cachedResponse) bool {
	return t.ttl <= 0 || t.now().Sub(time.Unix(entry.Stored, 0)) <= t.ttl
}

func (c cachedResponse) response(req *http.Request) *http.Response {
	header := c.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        strconv.Itoa(c.Status) + " " + http.StatusText(c.Status),
		StatusCode:    c.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}
