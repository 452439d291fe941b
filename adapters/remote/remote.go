// Package remote provides the client modules use to call the dashboard API.
// Reads go through cache.Fetcher and are memoized per session; writes bypass
// the cache and invalidate the resource they touched.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
)

// Client calls the JSON API on behalf of one session.
type Client struct {
	fetcher *cache.Fetcher
	doer    cache.Doer
	baseURL string
	token   string
	scope   string
	ttl     time.Duration
}

// ClientConfig configures the remote client.
type ClientConfig struct {
	BaseURL string        // e.g. http://127.0.0.1:8080/api
	Token   string        // forwarded as a bearer token
	Scope   string        // cache partition, normally the session id
	TTL     time.Duration // 0 = api region default
	HTTP    cache.Doer    // used for writes; nil = client with a 10s timeout
}

// NewClient creates a new remote client.
func NewClient(f *cache.Fetcher, cfg ClientConfig) *Client {
	doer := cfg.HTTP
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		fetcher: f,
		doer:    doer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		scope:   cfg.Scope,
		ttl:     cfg.TTL,
	}
}

// Get performs a cached GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	req := cache.FetchRequest{
		Method: http.MethodGet,
		URL:    c.url(path, query),
		Header: c.header(),
		Scope:  c.scope,
	}

	resp, err := c.fetcher.Fetch(ctx, req, c.ttl)
	var se *cache.StatusError
	if errors.As(err, &se) {
		return envelope.Decode(se.Status, se.Body, nil)
	}
	if err != nil {
		return err
	}

	if err := envelope.Decode(resp.Status, resp.Body, out); err != nil {
		// A 2xx carrying success=false must not be served again from cache.
		c.fetcher.Forget(req)
		return err
	}
	return nil
}

// Send performs an uncached request with a JSON body and decodes the envelope
// data into out. On success every cached read of the same resource is dropped.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, nil), bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.header() {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := envelope.Decode(resp.StatusCode, data, out); err != nil {
		return err
	}

	c.Invalidate(resourceRoot(path))
	return nil
}

// Invalidate drops cached reads under path, for every session.
func (c *Client) Invalidate(path string) int {
	return c.fetcher.Invalidate(c.baseURL + path)
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// resourceRoot returns the first path segment, e.g. /units for /units/1/modules/2.
func resourceRoot(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}
