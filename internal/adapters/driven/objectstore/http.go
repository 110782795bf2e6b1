package objectstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/ratelimit"
)

// Ensure HTTPStore implements the interface.
var _ driven.ObjectStore = (*HTTPStore)(nil)

// Defaults for HTTPStore.
const (
	DefaultHTTPTimeout = 60 * time.Second
	DefaultMaxBytes    = 200 << 20
)

// HTTPStore downloads documents over HTTP(S).
type HTTPStore struct {
	client   *http.Client
	maxBytes int64
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) HTTPOption {
	return func(s *HTTPStore) { s.maxBytes = n }
}

// NewHTTPStore creates an HTTP store.
func NewHTTPStore(opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch GETs sourceURL. 404 and 410 map to domain.ErrNotFound.
func (s *HTTPStore) Fetch(ctx context.Context, sourceURL string) (*domain.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", sourceURL, domain.ErrPermanentInput, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ratelimit.TransportError(ctx, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%s: %w", sourceURL, domain.ErrNotFound)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, ratelimit.TransportError(ctx, "fetch", err)
	}
	if err := ratelimit.CheckResponse("fetch", resp, body); err != nil {
		return nil, err
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("%s: %w: larger than %d bytes", sourceURL, domain.ErrPermanentInput, s.maxBytes)
	}

	return &domain.RawDocument{
		SourceURL: sourceURL,
		MIMEType:  responseType(resp, sourceURL, body),
		Content:   body,
	}, nil
}

// responseType trusts a specific Content-Type header, else guesses.
func responseType(resp *http.Response, sourceURL string, body []byte) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	name := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		name = path.Base(u.Path)
	}
	return DetectMIMEType(name, body)
}
