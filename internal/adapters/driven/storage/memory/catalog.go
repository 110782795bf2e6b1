package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// Ensure CatalogStore implements the interface.
var _ driven.CatalogStore = (*CatalogStore)(nil)

// CatalogStore is an in-memory implementation of driven.CatalogStore.
type CatalogStore struct {
	mu          sync.RWMutex
	collections map[string]domain.Collection
	documents   map[string]domain.SourceDocument
}

// NewCatalogStore creates a new in-memory catalog.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		collections: make(map[string]domain.Collection),
		documents:   make(map[string]domain.SourceDocument),
	}
}

// SaveCollection stores or updates a collection.
func (s *CatalogStore) SaveCollection(_ context.Context, c domain.Collection) error {
	if c.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.collections[c.ID] = c
	return nil
}

// GetCollection retrieves a collection by ID.
func (s *CatalogStore) GetCollection(_ context.Context, id string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// ListCollections returns all collections ordered by ID.
func (s *CatalogStore) ListCollections(_ context.Context) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveDocument stores or updates a document.
func (s *CatalogStore) SaveDocument(_ context.Context, doc domain.SourceDocument) error {
	if doc.ID == "" || doc.CollectionID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[doc.CollectionID]; !ok {
		return fmt.Errorf("collection %s: %w", doc.CollectionID, domain.ErrNotFound)
	}
	for _, other := range s.documents {
		if other.ID != doc.ID && other.CollectionID == doc.CollectionID && other.SourceURL == doc.SourceURL {
			return fmt.Errorf("document %s in %s: %w", doc.SourceURL, doc.CollectionID, domain.ErrAlreadyExists)
		}
	}

	now := time.Now()
	if existing, ok := s.documents[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *CatalogStore) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns the documents of a collection ordered by ID.
func (s *CatalogStore) ListDocuments(_ context.Context, collectionID string) ([]domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SourceDocument
	for _, doc := range s.documents {
		if doc.CollectionID == collectionID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteDocument removes a document.
func (s *CatalogStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}
