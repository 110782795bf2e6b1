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

// Ensure IndexStateStore implements the interface.
var _ driven.IndexStateStore = (*IndexStateStore)(nil)

// IndexStateStore is an in-memory implementation of driven.IndexStateStore.
// A single mutex makes every transition atomic within the process.
// Collections are not checked for existence.
type IndexStateStore struct {
	mu       sync.Mutex
	jobs     map[string]domain.DocumentJob
	statuses map[string]domain.CollectionIndexStatus
	now      func() time.Time
}

// NewIndexStateStore creates a new in-memory state store.
func NewIndexStateStore() *IndexStateStore {
	return &IndexStateStore{
		jobs:     make(map[string]domain.DocumentJob),
		statuses: make(map[string]domain.CollectionIndexStatus),
		now:      time.Now,
	}
}

// GetJob retrieves the job of a document.
func (s *IndexStateStore) GetJob(_ context.Context, documentID string) (*domain.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[documentID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	return &job, nil
}

// ListJobs returns the jobs of a collection ordered by document ID.
func (s *IndexStateStore) ListJobs(_ context.Context, collectionID string) ([]domain.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DocumentJob
	for _, job := range s.jobs {
		if job.CollectionID == collectionID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// Schedule creates a pending job or resets a terminal one to pending.
func (s *IndexStateStore) Schedule(_ context.Context, job domain.DocumentJob) error {
	if job.DocumentID == "" || job.CollectionID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.DocumentID]
	switch {
	case !ok:
		current = domain.DocumentJob{DocumentID: job.DocumentID}
	case current.Status == domain.JobProcessing:
		return fmt.Errorf("document %s: %w", job.DocumentID, domain.ErrAlreadyInProgress)
	case current.Status == domain.JobPending:
		return nil
	}
	current.CollectionID = job.CollectionID
	current.SourceURL = job.SourceURL
	current.Status = domain.JobPending
	current.ErrorMessage = ""
	current.UpdatedAt = s.now()
	s.jobs[job.DocumentID] = current
	return nil
}

// Begin moves a pending job to processing.
func (s *IndexStateStore) Begin(_ context.Context, documentID string) (*domain.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[documentID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	if job.Status == domain.JobProcessing {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}
	if err := job.Status.CheckTransition(domain.JobProcessing); err != nil {
		return nil, err
	}

	now := s.now()
	job.Status = domain.JobProcessing
	job.Attempts++
	job.ErrorMessage = ""
	job.StartedAt = now
	job.CompletedAt = time.Time{}
	job.UpdatedAt = now
	s.jobs[documentID] = job
	return &job, nil
}

// Complete marks the job completed and refreshes collection counts.
func (s *IndexStateStore) Complete(_ context.Context, documentID string, segmentCount int, sourceVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transition(documentID, domain.JobCompleted)
	if err != nil {
		return err
	}
	now := s.now()
	job.SegmentCount = segmentCount
	job.SourceVersion = sourceVersion
	job.ErrorMessage = ""
	job.CompletedAt = now
	job.UpdatedAt = now
	s.jobs[documentID] = job

	st := s.ensureStatus(job.CollectionID, now)
	st.LastIndexedAt = now
	s.refreshCounts(&st, now)
	return nil
}

// Fail marks the job failed.
func (s *IndexStateStore) Fail(_ context.Context, documentID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.transition(documentID, domain.JobFailed)
	if err != nil {
		return err
	}
	now := s.now()
	job.SegmentCount = 0
	job.ErrorMessage = message
	job.CompletedAt = now
	job.UpdatedAt = now
	s.jobs[documentID] = job
	return nil
}

// Retry resets a failed job to pending.
func (s *IndexStateStore) Retry(_ context.Context, documentID string) (*domain.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[documentID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	switch job.Status {
	case domain.JobProcessing:
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	case domain.JobFailed:
		job.Status = domain.JobPending
		job.ErrorMessage = ""
		job.UpdatedAt = s.now()
		s.jobs[documentID] = job
	}
	return &job, nil
}

// Touch refreshes the heartbeat of a processing job.
func (s *IndexStateStore) Touch(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[documentID]
	if !ok {
		return fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	if job.Status != domain.JobProcessing {
		return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, documentID, job.Status)
	}
	job.UpdatedAt = s.now()
	s.jobs[documentID] = job
	return nil
}

// FailStale fails processing jobs not updated since before and returns
// them ordered by document ID.
func (s *IndexStateStore) FailStale(_ context.Context, before time.Time) ([]domain.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var failed []domain.DocumentJob
	for id, job := range s.jobs {
		if job.Status != domain.JobProcessing || !job.UpdatedAt.Before(before) {
			continue
		}
		job.Status = domain.JobFailed
		job.SegmentCount = 0
		job.ErrorMessage = "abandoned: worker stopped before finishing"
		job.CompletedAt = now
		job.UpdatedAt = now
		s.jobs[id] = job
		failed = append(failed, job)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].DocumentID < failed[j].DocumentID })
	return failed, nil
}

// DeleteJob removes a job and refreshes the collection counts.
func (s *IndexStateStore) DeleteJob(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[documentID]
	if !ok {
		return nil
	}
	if job.Status == domain.JobProcessing {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}
	delete(s.jobs, documentID)
	if st, ok := s.statuses[job.CollectionID]; ok {
		s.refreshCounts(&st, s.now())
	}
	return nil
}

// GetCollectionStatus retrieves the status of a collection.
func (s *IndexStateStore) GetCollectionStatus(_ context.Context, collectionID string) (*domain.CollectionIndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection status %s: %w", collectionID, domain.ErrNotFound)
	}
	return &st, nil
}

// SetCollectionState updates status and message and recomputes counts.
func (s *IndexStateStore) SetCollectionState(
	_ context.Context,
	collectionID string,
	status domain.JobStatus,
	message string,
) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := s.ensureStatus(collectionID, now)
	st.Status = status
	st.ErrorMessage = message
	s.refreshCounts(&st, now)
	return nil
}

// RestoreCollectionStatus writes back a snapshot, or removes the status.
func (s *IndexStateStore) RestoreCollectionStatus(
	_ context.Context,
	collectionID string,
	snapshot *domain.CollectionIndexStatus,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot == nil {
		delete(s.statuses, collectionID)
		return nil
	}
	st := *snapshot
	st.CollectionID = collectionID
	s.statuses[collectionID] = st
	return nil
}

// ListCollectionStatuses returns every collection status.
func (s *IndexStateStore) ListCollectionStatuses(_ context.Context) ([]domain.CollectionIndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CollectionIndexStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectionID < out[j].CollectionID })
	return out, nil
}

// transition checks that a job exists and may move to next. Caller holds mu.
func (s *IndexStateStore) transition(documentID string, next domain.JobStatus) (domain.DocumentJob, error) {
	job, ok := s.jobs[documentID]
	if !ok {
		return job, fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	if err := job.Status.CheckTransition(next); err != nil {
		return job, err
	}
	job.Status = next
	return job, nil
}

// ensureStatus returns the collection status, creating it pending. Caller holds mu.
func (s *IndexStateStore) ensureStatus(collectionID string, now time.Time) domain.CollectionIndexStatus {
	st, ok := s.statuses[collectionID]
	if !ok {
		st = domain.CollectionIndexStatus{
			CollectionID: collectionID,
			Status:       domain.JobPending,
			UpdatedAt:    now,
		}
	}
	return st
}

// refreshCounts recomputes aggregates from completed jobs and stores st. Caller holds mu.
func (s *IndexStateStore) refreshCounts(st *domain.CollectionIndexStatus, now time.Time) {
	st.DocumentCount = 0
	st.SegmentCount = 0
	for _, job := range s.jobs {
		if job.CollectionID == st.CollectionID && job.Status == domain.JobCompleted {
			st.DocumentCount++
			st.SegmentCount += job.SegmentCount
		}
	}
	st.UpdatedAt = now
	s.statuses[st.CollectionID] = *st
}
