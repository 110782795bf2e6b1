package domain

import (
	"fmt"
	"time"
)

// JobStatus is the indexing state of a document or collection.
type JobStatus string

// Job states.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo reports whether a document job may move from s to next.
//
//	pending    -> processing
//	processing -> completed | failed
//	failed     -> pending     (retry)
//	completed  -> pending     (source changed, re-index)
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing
	case JobProcessing:
		return next == JobCompleted || next == JobFailed
	case JobFailed, JobCompleted:
		return next == JobPending
	default:
		return false
	}
}

// CheckTransition returns ErrInvalidTransition when CanTransitionTo is false.
func (s JobStatus) CheckTransition(next JobStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

func (s JobStatus) String() string {
	return string(s)
}

// DocumentJob tracks indexing of one document. There is one job per
// document; its status is the source of truth for whether the document's
// segments are searchable.
type DocumentJob struct {
	DocumentID   string
	CollectionID string
	SourceURL    string
	Status       JobStatus
	SegmentCount int

	// ErrorMessage holds the first fatal cause of the last failure.
	ErrorMessage string

	// SourceVersion is the document version the segments were built from.
	SourceVersion string

	// Attempts counts how many times processing began.
	Attempts int

	StartedAt   time.Time
	CompletedAt time.Time
	UpdatedAt   time.Time
}

// NeedsIndexing reports whether a job must be scheduled for the given
// catalog version. Failed jobs wait for an explicit retry.
func (j *DocumentJob) NeedsIndexing(version string) bool {
	if j == nil {
		return true
	}
	switch j.Status {
	case JobPending:
		return true
	case JobCompleted:
		return j.SourceVersion != version
	default:
		return false
	}
}

// CollectionIndexStatus aggregates the document jobs of a collection.
type CollectionIndexStatus struct {
	CollectionID  string
	Status        JobStatus
	DocumentCount int
	SegmentCount  int
	LastIndexedAt time.Time
	ErrorMessage  string
	UpdatedAt     time.Time
}

// IndexSummary reports the outcome of one collection index.
type IndexSummary struct {
	CollectionID string
	Status       JobStatus

	// Scheduled counts documents that were run in this call.
	Scheduled int
	Completed int
	Failed    int

	// Skipped counts up-to-date or failed-awaiting-retry documents.
	Skipped int

	// Conflicts counts documents already being processed elsewhere.
	Conflicts int

	// Pending counts documents left unstarted, by cancellation or a
	// claim that could not be recorded.
	Pending int

	// Failures maps document ID to its error message.
	Failures map[string]string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (s *IndexSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunStatus is the state of a background index run.
type RunStatus string

// Run states.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// IndexRun is the handle of a background collection index.
type IndexRun struct {
	ID           string
	CollectionID string
	Status       RunStatus
	Summary      *IndexSummary
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}
