// Package http implements a read-only backend that fetches objects from a
// plain HTTP(S) server or CDN.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func init() {
	backend.Register("http", NewBackend)
}

// Backend reads objects relative to a base URL.
type Backend struct {
	base   *url.URL
	token  string
	client *http.Client
}

// NewBackend creates an HTTP backend. Recognized keys: url (required),
// token, timeout.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	raw := cfg["url"]
	if raw == "" {
		return nil, fmt.Errorf("http backend requires 'url' configuration")
	}
	base, err := url.Parse(raw)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid http backend url %q", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := 30 * time.Second
	if t := cfg["timeout"]; t != "" {
		timeout, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
	}

	return &Backend{
		base:   base,
		token:  cfg["token"],
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (b *Backend) Type() string {
	return "http"
}

func (b *Backend) Read(ctx context.Context, objectPath string) (*backend.Object, error) {
	resp, err := b.do(ctx, http.MethodGet, objectPath)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, backend.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to read %s: %s", b.url(objectPath), resp.Status)
	}

	return &backend.Object{Body: resp.Body, Size: resp.ContentLength}, nil
}

func (b *Backend) Write(context.Context, string, io.Reader) error {
	return backend.ErrReadOnly
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	resp, err := b.do(ctx, http.MethodHead, objectPath)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check existence: %s", resp.Status)
	}
}

func (b *Backend) Lock(context.Context, string, backend.LockInfo) (backend.Lock, error) {
	return nil, backend.ErrReadOnly
}

func (b *Backend) do(ctx context.Context, method, objectPath string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.url(objectPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", method, b.url(objectPath), err)
	}
	return resp, nil
}

func (b *Backend) url(objectPath string) string {
	return b.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(objectPath, "/")}).String()
}
