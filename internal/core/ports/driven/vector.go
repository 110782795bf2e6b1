package driven

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// VectorIndex persists segments with their embeddings and runs
// cosine similarity search over them.
type VectorIndex interface {
	// Upsert stores segments. For every document present in the batch,
	// the document's previous segments are replaced atomically.
	// Returns domain.ErrDimensionMismatch if a vector's length differs
	// from the dimension of already stored segments.
	Upsert(ctx context.Context, segments []domain.Segment) error

	// Search returns at most q.TopK hits inside q.Scope scoring at least
	// q.MinScore, best first. Equal scores keep insertion order.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchHit, error)

	// DeleteDocument removes every segment of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// CountSegments returns how many segments fall inside scope.
	CountSegments(ctx context.Context, scope domain.Scope) (int, error)

	// Dimension returns the stored vector dimension, or 0 if empty.
	Dimension(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
