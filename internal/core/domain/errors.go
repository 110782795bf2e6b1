package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown parser, provider or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// Indexing Errors.

	// ErrTransientProvider indicates a retryable failure from an external
	// collaborator (rate limit, timeout, 5xx).
	ErrTransientProvider = errors.New("transient provider error")

	// ErrPermanentInput indicates the document itself cannot be processed.
	// Never retried.
	ErrPermanentInput = errors.New("permanent input error")

	// ErrAlreadyInProgress indicates another worker holds the document.
	ErrAlreadyInProgress = errors.New("already in progress")

	// ErrDimensionMismatch indicates embeddings of a different size than
	// the ones already stored. Requires a full re-index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidTransition indicates a job status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// Availability Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answering questions is disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrRetrievalUnavailable indicates the vector index could not be queried.
	// Distinct from an empty result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrCancelled indicates an index run was cancelled before all documents ran.
	ErrCancelled = errors.New("indexing cancelled")
)

// EmbeddingProviderError is returned when a batch could not be embedded
// after the retry budget was spent. No vectors of the batch are returned.
type EmbeddingProviderError struct {
	// Attempts is how many calls were made for the failing batch.
	Attempts int

	// Err is the last underlying error.
	Err error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a document the parser rejected.
// It matches ErrPermanentInput.
type ParseError struct {
	// Source identifies the document (URL or name).
	Source string

	// Reason is the parser's explanation.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports ParseError as a permanent input error.
func (e *ParseError) Is(target error) bool {
	return target == ErrPermanentInput
}

// IsTransient reports whether err is worth retrying.
// Per-attempt deadlines and network timeouts count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanentInput) || errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrAlreadyInProgress) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransientProvider) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
