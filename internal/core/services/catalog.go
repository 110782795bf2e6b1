package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://coursemind.dev/documents"))

// DocumentID returns the ID given to a document registered without one.
// The same collection and URL always give the same ID.
func DocumentID(collectionID, sourceURL string) string {
	return uuid.NewSHA1(documentNamespace, []byte(collectionID+"\x00"+sourceURL)).String()
}

// CatalogService manages collections and documents.
type CatalogService struct {
	store driven.CatalogStore
	now   func() time.Time
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store driven.CatalogStore) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// AddCollection creates a collection. An existing ID is an error.
func (s *CatalogService) AddCollection(ctx context.Context, c domain.Collection) (*domain.Collection, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" {
		return nil, fmt.Errorf("%w: collection ID and name are required", domain.ErrInvalidInput)
	}

	_, err := s.store.GetCollection(ctx, c.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("collection %s: %w", c.ID, domain.ErrAlreadyExists)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get collection: %w", err)
	}

	c.CreatedAt = s.now()
	if err := s.store.SaveCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("save collection: %w", err)
	}
	return &c, nil
}

// GetCollection returns a collection.
func (s *CatalogService) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	return s.store.GetCollection(ctx, id)
}

// ListCollections returns all collections.
func (s *CatalogService) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return s.store.ListCollections(ctx)
}

// AddDocument registers or updates a document.
func (s *CatalogService) AddDocument(ctx context.Context, doc domain.SourceDocument) (*domain.SourceDocument, error) {
	doc.SourceURL = strings.TrimSpace(doc.SourceURL)
	if doc.CollectionID == "" || doc.SourceURL == "" {
		return nil, fmt.Errorf("%w: collection and source URL are required", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = DocumentID(doc.CollectionID, doc.SourceURL)
	}
	if doc.Name == "" {
		doc.Name = NameFromURL(doc.SourceURL)
	}

	now := s.now()
	existing, err := s.store.GetDocument(ctx, doc.ID)
	switch {
	case err == nil:
		if existing.CollectionID != doc.CollectionID {
			return nil, fmt.Errorf("%w: document %s belongs to collection %s",
				domain.ErrInvalidInput, doc.ID, existing.CollectionID)
		}
		doc.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
		doc.CreatedAt = now
	default:
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.UpdatedAt = now

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return &doc, nil
}

// GetDocument returns a document.
func (s *CatalogService) GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error) {
	return s.store.GetDocument(ctx, id)
}

// ListDocuments returns the documents of a collection.
func (s *CatalogService) ListDocuments(ctx context.Context, collectionID string) ([]domain.SourceDocument, error) {
	if _, err := s.store.GetCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return s.store.ListDocuments(ctx, collectionID)
}

// NameFromURL returns the last path element of a path or URL.
func NameFromURL(sourceURL string) string {
	if u, err := url.Parse(sourceURL); err == nil && len(u.Scheme) > 1 {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
		return u.Host
	}
	return filepath.Base(sourceURL)
}
