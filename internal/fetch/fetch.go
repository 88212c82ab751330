// Package fetch downloads the board document used for auto-loading.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultFile is the document requested when no file name is configured.
const DefaultFile = "Q7vCIwzd - guille.json"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

type Fetcher struct {
	client  *http.Client
	baseURL string
	file    string
	timeout time.Duration
	maxSize int64
}

// New returns a Fetcher for baseURL/file. An empty file uses DefaultFile.
// maxSize caps the body; zero means no cap.
func New(client *http.Client, baseURL, file string, timeout time.Duration, maxSize int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if file == "" {
		file = DefaultFile
	}
	return &Fetcher{client: client, baseURL: baseURL, file: file, timeout: timeout, maxSize: maxSize}
}

// URL resolves the document location. The file name is path-escaped so
// names with spaces work.
func (f *Fetcher) URL() (string, error) {
	base, err := url.Parse(strings.TrimSuffix(f.baseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref := &url.URL{Path: f.file, RawPath: url.PathEscape(f.file)}
	return base.ResolveReference(ref).String(), nil
}

// Fetch performs a single GET. Callers decide whether to retry.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	target, err := f.URL()
	if err != nil {
		return nil, err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if f.maxSize > 0 && int64(len(raw)) > f.maxSize {
		return nil, fmt.Errorf("fetch %s: document larger than %d bytes", target, f.maxSize)
	}

	slog.DebugContext(ctx, "Board document fetched",
		"url", target,
		"bytes", len(raw),
		"duration", time.Since(start))
	return raw, nil
}
