// Package assets provides the sources module scripts and stylesheets are
// fetched from: an fs.FS (normally the embedded web directory) or a remote
// HTTP origin.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
)

// ErrNotFound is returned when an asset does not exist.
var ErrNotFound = errors.New("asset not found")

// maxAssetSize bounds a single script or stylesheet.
const maxAssetSize = 2 << 20

// FS serves assets from a file system. Locations are slash-separated paths,
// optionally prefixed by Prefix (e.g. "/assets/").
type FS struct {
	Files  fs.FS
	Prefix string
}

// Fetch reads the file at location.
func (s FS) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(location, s.Prefix)
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}

	b, err := fs.ReadFile(s.Files, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return b, err
}

// HTTP fetches assets from an origin. Relative locations are resolved
// against BaseURL; absolute http(s) URLs are fetched as-is.
type HTTP struct {
	BaseURL string
	Client  cache.Doer // nil = client with a 15s timeout
}

// Fetch downloads the asset at location.
func (s HTTP) Fetch(ctx context.Context, location string) ([]byte, error) {
	url := location
	if !isURL(location) {
		url = strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(location, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
}

// Mux sends absolute URLs to Remote and everything else to Local.
// A nil Remote rejects absolute URLs.
type Mux struct {
	Local  FS
	Remote *HTTP
}

// Fetch dispatches on the location's form.
func (m Mux) Fetch(ctx context.Context, location string) ([]byte, error) {
	if isURL(location) {
		if m.Remote == nil {
			return nil, fmt.Errorf("%w: remote assets disabled: %s", ErrNotFound, location)
		}
		return m.Remote.Fetch(ctx, location)
	}
	return m.Local.Fetch(ctx, location)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
