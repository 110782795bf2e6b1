package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// IndexStateStore persists document jobs and collection index statuses.
// It is the source of truth for indexing progress and holds the
// per-document lock: only Begin can move a job into processing, and it
// does so with a single compare-and-set so that concurrent workers,
// including workers in other processes, cannot both win.
type IndexStateStore interface {
	// GetJob returns the job for a document or domain.ErrNotFound.
	GetJob(ctx context.Context, documentID string) (*domain.DocumentJob, error)

	// ListJobs returns the jobs of a collection ordered by document ID.
	ListJobs(ctx context.Context, collectionID string) ([]domain.DocumentJob, error)

	// Schedule creates the job in pending, or resets a completed or failed
	// job to pending. A pending job is left untouched. A processing job
	// yields domain.ErrAlreadyInProgress.
	Schedule(ctx context.Context, job domain.DocumentJob) error

	// Begin moves a pending job to processing and returns it.
	// Returns domain.ErrAlreadyInProgress if the job is processing,
	// domain.ErrInvalidTransition for other states and
	// domain.ErrNotFound if no job exists.
	Begin(ctx context.Context, documentID string) (*domain.DocumentJob, error)

	// Complete marks a processing job completed and, in the same
	// transaction, recomputes the collection's document and segment counts.
	Complete(ctx context.Context, documentID string, segmentCount int, sourceVersion string) error

	// Fail marks a processing job failed with its cause.
	// Callers must delete the document's segments first.
	Fail(ctx context.Context, documentID, message string) error

	// Retry moves a failed job back to pending. Pending and completed jobs
	// are returned unchanged. Processing yields domain.ErrAlreadyInProgress.
	Retry(ctx context.Context, documentID string) (*domain.DocumentJob, error)

	// Touch refreshes the heartbeat of a processing job. A job that is no
	// longer processing yields domain.ErrInvalidTransition, which tells
	// the worker it lost the job.
	Touch(ctx context.Context, documentID string) error

	// FailStale fails processing jobs whose heartbeat is older than
	// before, which belonged to a worker that died, and returns them.
	// Callers must then delete the returned documents' segments.
	FailStale(ctx context.Context, before time.Time) ([]domain.DocumentJob, error)

	// DeleteJob removes a document's job and refreshes collection counts.
	DeleteJob(ctx context.Context, documentID string) error

	// GetCollectionStatus returns the status or domain.ErrNotFound.
	GetCollectionStatus(ctx context.Context, collectionID string) (*domain.CollectionIndexStatus, error)

	// SetCollectionState sets status and message and recomputes counts.
	SetCollectionState(ctx context.Context, collectionID string, status domain.JobStatus, message string) error

	// RestoreCollectionStatus writes back a snapshot taken with
	// GetCollectionStatus. A nil snapshot removes the status.
	RestoreCollectionStatus(ctx context.Context, collectionID string, snapshot *domain.CollectionIndexStatus) error

	// ListCollectionStatuses returns every collection status.
	ListCollectionStatuses(ctx context.Context) ([]domain.CollectionIndexStatus, error)
}
