package mcp

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	segments []domain.RetrievedSegment
	err      error
	lastQ    domain.RetrievalQuery
}

func (m *mockRetrievalService) Retrieve(_ context.Context, q domain.RetrievalQuery) ([]domain.RetrievedSegment, error) {
	m.lastQ = q
	return m.segments, m.err
}

func (m *mockRetrievalService) InvalidateCollection(_ context.Context, _ string) error {
	return m.err
}

// mockIndexingService is a mock implementation of driving.IndexingService.
// Only the status methods are used by the server.
type mockIndexingService struct {
	driving.IndexingService

	job    *domain.DocumentJob
	status *domain.CollectionIndexStatus
	jobs   []domain.DocumentJob
	err    error
}

func (m *mockIndexingService) DocumentStatus(_ context.Context, _ string) (*domain.DocumentJob, error) {
	return m.job, m.err
}

func (m *mockIndexingService) CollectionStatus(
	_ context.Context,
	_ string,
) (*domain.CollectionIndexStatus, []domain.DocumentJob, error) {
	return m.status, m.jobs, m.err
}

// mockCatalogService is a mock implementation of driving.CatalogService.
type mockCatalogService struct {
	collections []domain.Collection
	documents   []domain.SourceDocument
	err         error
}

func (m *mockCatalogService) AddCollection(_ context.Context, c domain.Collection) (*domain.Collection, error) {
	return &c, m.err
}

func (m *mockCatalogService) GetCollection(_ context.Context, _ string) (*domain.Collection, error) {
	if len(m.collections) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.collections[0], m.err
}

func (m *mockCatalogService) ListCollections(_ context.Context) ([]domain.Collection, error) {
	return m.collections, m.err
}

func (m *mockCatalogService) AddDocument(_ context.Context, doc domain.SourceDocument) (*domain.SourceDocument, error) {
	return &doc, m.err
}

func (m *mockCatalogService) GetDocument(_ context.Context, _ string) (*domain.SourceDocument, error) {
	if len(m.documents) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.documents[0], m.err
}

func (m *mockCatalogService) ListDocuments(_ context.Context, _ string) ([]domain.SourceDocument, error) {
	return m.documents, m.err
}

// Ensure mocks implement interfaces
var (
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.IndexingService  = (*mockIndexingService)(nil)
	_ driving.CatalogService   = (*mockCatalogService)(nil)
)
