package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxFetchBody bounds how much of a response Fetch buffers.
const maxFetchBody = 10 << 20

// ErrBodyTooLarge is returned when a response exceeds maxFetchBody. Such
// responses are never cached.
var ErrBodyTooLarge = errors.New("response body too large")

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchRequest describes a cacheable HTTP call.
type FetchRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Scope partitions cached responses, e.g. per session. It is part of the
	// key but never sent.
	Scope string
}

// Response is a fully buffered HTTP response. Callers must not mutate it.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// Fetcher performs HTTP calls memoized in RegionAPI.
type Fetcher struct {
	cache  *Cache
	client Doer
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(c *Cache, client Doer, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		cache:  c,
		client: client,
		logger: logger.With().Str("component", "fetch").Logger(),
	}
}

// FetchKey derives the cache key: METHOD:URL:QUERY:BODY, prefixed by the
// query-escaped scope and "|" when one is set. Query parameters are sorted so
// equivalent URLs share a key.
func FetchKey(req FetchRequest) string {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	base, query := req.URL, ""
	if u, err := url.Parse(req.URL); err == nil {
		query = u.Query().Encode()
		u.RawQuery = ""
		u.Fragment = ""
		base = u.String()
	}

	key := method + ":" + base + ":" + query + ":" + string(req.Body)
	if req.Scope != "" {
		key = url.QueryEscape(req.Scope) + "|" + key
	}
	return key
}

// Fetch returns the cached response for req or performs the call.
// Only 2xx responses are cached, with ttl (0 = region default). A non-2xx
// response yields a *StatusError and leaves the cache untouched. Transport
// errors are returned as-is and never cached.
func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest, ttl time.Duration) (Response, error) {
	key := FetchKey(req)
	if v, ok := f.cache.Get(RegionAPI, key); ok {
		if resp, ok := v.(Response); ok {
			f.logger.Debug().Str("key", key).Msg("fetch served from cache")
			return resp, nil
		}
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxFetchBody+1))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxFetchBody {
		return Response{}, fmt.Errorf("%w: %s %s exceeds %d bytes", ErrBodyTooLarge, method, req.URL, maxFetchBody)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return Response{}, &StatusError{
			Method: method,
			URL:    req.URL,
			Status: httpResp.StatusCode,
			Body:   data,
		}
	}

	resp := Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header.Clone(),
		Body:   data,
	}
	f.cache.SetWithTTL(RegionAPI, key, resp, ttl)
	return resp, nil
}

// Invalidate drops every cached response whose URL starts with urlPrefix,
// in any scope. It returns how many entries were removed.
func (f *Fetcher) Invalidate(urlPrefix string) int {
	n := 0
	for _, k := range f.cache.Keys(RegionAPI) {
		if strings.HasPrefix(keyURL(k), urlPrefix) && f.cache.Delete(RegionAPI, k) {
			n++
		}
	}
	return n
}

// keyURL strips the scope and method from a FetchKey. Escaped scopes and
// methods contain neither ':' nor '|', so the first of them ends the prefix.
func keyURL(key string) string {
	i := strings.IndexAny(key, ":|")
	if i < 0 {
		return ""
	}
	if key[i] == '|' {
		key = key[i+1:]
		if i = strings.IndexByte(key, ':'); i < 0 {
			return ""
		}
	}
	return key[i+1:]
}

// Forget drops the cached response for req, if any.
func (f *Fetcher) Forget(req FetchRequest) bool {
	return f.cache.Delete(RegionAPI, FetchKey(req))
}
