package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure Mux implements the interface.
var _ driven.ObjectStore = (*Mux)(nil)

// Mux routes fetches by URL scheme. Paths without a scheme go to "file".
type Mux struct {
	stores map[string]driven.ObjectStore
}

// NewMux creates a mux serving file://, http:// and https:// URLs.
func NewMux(files *FileStore, web *HTTPStore) *Mux {
	m := &Mux{stores: make(map[string]driven.ObjectStore)}
	m.Handle("file", files)
	m.Handle("http", web)
	m.Handle("https", web)
	return m
}

// Handle registers store for scheme.
func (m *Mux) Handle(scheme string, store driven.ObjectStore) {
	m.stores[strings.ToLower(scheme)] = store
}

// Fetch dispatches on the URL scheme.
func (m *Mux) Fetch(ctx context.Context, sourceURL string) (*domain.RawDocument, error) {
	scheme := Scheme(sourceURL)
	store, ok := m.stores[scheme]
	if !ok {
		return nil, fmt.Errorf("%s: %w: unsupported scheme %q", sourceURL, domain.ErrPermanentInput, scheme)
	}
	return store.Fetch(ctx, sourceURL)
}

// Scheme returns the lowercased scheme of sourceURL, or "file" for plain
// paths (including Windows drive letters).
func Scheme(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
