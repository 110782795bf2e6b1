package driven

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// CatalogStore persists collections and the documents assigned to them.
type CatalogStore interface {
	// SaveCollection creates or updates a collection.
	SaveCollection(ctx context.Context, c domain.Collection) error

	// GetCollection returns a collection or domain.ErrNotFound.
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)

	// ListCollections returns all collections ordered by ID.
	ListCollections(ctx context.Context) ([]domain.Collection, error)

	// SaveDocument creates or updates a document.
	// The collection must exist.
	SaveDocument(ctx context.Context, doc domain.SourceDocument) error

	// GetDocument returns a document or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error)

	// ListDocuments returns the documents of a collection ordered by ID.
	ListDocuments(ctx context.Context, collectionID string) ([]domain.SourceDocument, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, id string) error
}
