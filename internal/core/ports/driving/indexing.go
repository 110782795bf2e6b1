package driving

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// IndexingService drives documents through fetch, parse, segment, embed
// and persist, and reports their state.
type IndexingService interface {
	// IndexCollection indexes every document of the collection that needs
	// it and blocks until they finish or ctx is cancelled. Cancellation
	// stops scheduling new documents; started ones finish.
	IndexCollection(ctx context.Context, collectionID string) (*domain.IndexSummary, error)

	// StartCollectionIndex runs IndexCollection in the background and
	// returns the run for polling.
	StartCollectionIndex(ctx context.Context, collectionID string) (*domain.IndexRun, error)

	// Run returns a background run by ID.
	Run(runID string) (*domain.IndexRun, error)

	// CancelRun stops a background run between documents.
	CancelRun(runID string) error

	// IndexPending indexes every collection with outstanding work.
	IndexPending(ctx context.Context) ([]domain.IndexSummary, error)

	// RetryDocument resets a failed document to pending.
	RetryDocument(ctx context.Context, documentID string) (*domain.DocumentJob, error)

	// RetryCollection resets every failed document and indexes the collection.
	RetryCollection(ctx context.Context, collectionID string) (*domain.IndexSummary, error)

	// DeleteDocument removes a document with its segments and job.
	DeleteDocument(ctx context.Context, documentID string) error

	// DocumentStatus returns the job of a document.
	DocumentStatus(ctx context.Context, documentID string) (*domain.DocumentJob, error)

	// CollectionStatus returns the collection status and its jobs.
	CollectionStatus(ctx context.Context, collectionID string) (*domain.CollectionIndexStatus, []domain.DocumentJob, error)
}
