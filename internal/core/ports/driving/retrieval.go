package driving

import (
	"context"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// RetrievalService finds the segments most relevant to a question.
type RetrievalService interface {
	// Retrieve returns ranked, attributed segments. No match is an empty
	// slice and a nil error; an unreachable index is
	// domain.ErrRetrievalUnavailable.
	Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.RetrievedSegment, error)

	// InvalidateCollection drops cached retrieval results for a collection.
	InvalidateCollection(ctx context.Context, collectionID string) error
}

// AnswerService answers questions from retrieved course material.
type AnswerService interface {
	// Ask retrieves context for question and generates an answer.
	// history holds earlier turns, oldest first.
	Ask(ctx context.Context, q domain.RetrievalQuery, history []domain.ChatMessage) (*domain.Answer, error)
}
