package driving

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// CatalogService manages collections and their documents.
type CatalogService interface {
	// AddCollection creates a collection. ID and Name are required.
	AddCollection(ctx context.Context, c domain.Collection) (*domain.Collection, error)

	// GetCollection returns a collection.
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)

	// ListCollections returns all collections.
	ListCollections(ctx context.Context) ([]domain.Collection, error)

	// AddDocument registers a document. A missing ID is generated and a
	// missing Name is taken from the source URL.
	AddDocument(ctx context.Context, doc domain.SourceDocument) (*domain.SourceDocument, error)

	// GetDocument returns a document.
	GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error)

	// ListDocuments returns the documents of a collection.
	ListDocuments(ctx context.Context, collectionID string) ([]domain.SourceDocument, error)
}
