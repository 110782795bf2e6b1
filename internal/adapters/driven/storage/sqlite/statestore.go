package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
)

// stateStore implements driven.IndexStateStore.
// Every transition is a single conditional UPDATE so the row itself acts
// as the per-document lock, valid across processes sharing the file.
type stateStore struct {
	store *Store
}

var _ driven.IndexStateStore = (*stateStore)(nil)

const jobColumns = `document_id, collection_id, source_url, status, segment_count, error_message,
	source_version, attempts, started_at, completed_at, updated_at`

// GetJob retrieves the job of a document.
func (s *stateStore) GetJob(ctx context.Context, documentID string) (*domain.DocumentJob, error) {
	return getJob(ctx, s.store.db, documentID)
}

// ListJobs returns the jobs of a collection ordered by document ID.
func (s *stateStore) ListJobs(ctx context.Context, collectionID string) ([]domain.DocumentJob, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM document_jobs WHERE collection_id = ? ORDER BY document_id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.DocumentJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// Schedule creates a pending job or resets a terminal one to pending.
func (s *stateStore) Schedule(ctx context.Context, job domain.DocumentJob) error {
	if job.DocumentID == "" || job.CollectionID == "" {
		return domain.ErrInvalidInput
	}

	now := formatTime(time.Now())
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_jobs (document_id, collection_id, source_url, status, updated_at)
		VALUES (?, ?, ?, 'pending', ?)
		ON CONFLICT(document_id) DO UPDATE SET
			collection_id = excluded.collection_id,
			source_url = excluded.source_url,
			status = 'pending',
			error_message = '',
			updated_at = excluded.updated_at
		WHERE document_jobs.status IN ('completed', 'failed')
	`, job.DocumentID, job.CollectionID, job.SourceURL, now)
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return fmt.Errorf("collection %s: %w", job.CollectionID, domain.ErrNotFound)
		}
		return fmt.Errorf("scheduling job: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	current, err := s.GetJob(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	if current.Status == domain.JobProcessing {
		return fmt.Errorf("document %s: %w", job.DocumentID, domain.ErrAlreadyInProgress)
	}
	return nil
}

// Begin moves a pending job to processing.
func (s *stateStore) Begin(ctx context.Context, documentID string) (*domain.DocumentJob, error) {
	now := formatTime(time.Now())
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE document_jobs SET
			status = 'processing',
			attempts = attempts + 1,
			error_message = '',
			started_at = ?,
			completed_at = NULL,
			updated_at = ?
		WHERE document_id = ? AND status = 'pending'
	`, now, now, documentID)
	if err != nil {
		return nil, fmt.Errorf("beginning job: %w", err)
	}

	job, err := s.GetJob(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return job, nil
	}
	if job.Status == domain.JobProcessing {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}
	return nil, job.Status.CheckTransition(domain.JobProcessing)
}

// Complete marks the job completed and refreshes collection counts atomically.
func (s *stateStore) Complete(ctx context.Context, documentID string, segmentCount int, sourceVersion string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE document_jobs SET
			status = 'completed',
			segment_count = ?,
			source_version = ?,
			error_message = '',
			completed_at = ?,
			updated_at = ?
		WHERE document_id = ? AND status = 'processing'
	`, segmentCount, sourceVersion, formatTime(now), formatTime(now), documentID)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return s.transitionError(ctx, tx, documentID, domain.JobCompleted)
	}

	job, err := getJob(ctx, tx, documentID)
	if err != nil {
		return err
	}
	if err := ensureCollectionStatus(ctx, tx, job.CollectionID, now); err != nil {
		return err
	}
	if err := refreshCounts(ctx, tx, job.CollectionID, now, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Fail marks the job failed.
func (s *stateStore) Fail(ctx context.Context, documentID, message string) error {
	now := formatTime(time.Now())
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE document_jobs SET
			status = 'failed',
			segment_count = 0,
			error_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE document_id = ? AND status = 'processing'
	`, message, now, now, documentID)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return s.transitionError(ctx, s.store.db, documentID, domain.JobFailed)
	}
	return nil
}

// Retry resets a failed job to pending.
func (s *stateStore) Retry(ctx context.Context, documentID string) (*domain.DocumentJob, error) {
	now := formatTime(time.Now())
	if _, err := s.store.db.ExecContext(ctx, `
		UPDATE document_jobs SET status = 'pending', error_message = '', updated_at = ?
		WHERE document_id = ? AND status = 'failed'
	`, now, documentID); err != nil {
		return nil, fmt.Errorf("retrying job: %w", err)
	}

	job, err := s.GetJob(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if job.Status == domain.JobProcessing {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}
	return job, nil
}

// Touch refreshes updated_at of a processing job.
func (s *stateStore) Touch(ctx context.Context, documentID string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE document_jobs SET updated_at = ?
		WHERE document_id = ? AND status = 'processing'
	`, formatTime(time.Now()), documentID)
	if err != nil {
		return fmt.Errorf("touching job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	job, err := s.GetJob(ctx, documentID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, documentID, job.Status)
}

// FailStale fails processing jobs whose worker stopped updating them.
// The UPDATE returns the rows it changed, so claiming is atomic.
func (s *stateStore) FailStale(ctx context.Context, before time.Time) ([]domain.DocumentJob, error) {
	now := formatTime(time.Now())
	rows, err := s.store.db.QueryContext(ctx, `
		UPDATE document_jobs SET
			status = 'failed',
			segment_count = 0,
			error_message = 'abandoned: worker stopped before finishing',
			completed_at = ?,
			updated_at = ?
		WHERE status = 'processing' AND updated_at < ?
		RETURNING `+jobColumns, now, now, formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("failing stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.DocumentJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJob removes a job and refreshes the collection counts.
func (s *stateStore) DeleteJob(ctx context.Context, documentID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	job, err := getJob(ctx, tx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status == domain.JobProcessing {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_jobs WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	if err := refreshCounts(ctx, tx, job.CollectionID, time.Now(), false); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetCollectionStatus retrieves the status of a collection.
func (s *stateStore) GetCollectionStatus(ctx context.Context, collectionID string) (*domain.CollectionIndexStatus, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT collection_id, status, document_count, segment_count, last_indexed_at, error_message, updated_at
		FROM collection_index_status WHERE collection_id = ?
	`, collectionID)

	st, err := scanCollectionStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection status %s: %w", collectionID, domain.ErrNotFound)
	}
	return st, err
}

// SetCollectionState updates status and message and recomputes counts.
func (s *stateStore) SetCollectionState(ctx context.Context, collectionID string, status domain.JobStatus, message string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	if err := ensureCollectionStatus(ctx, tx, collectionID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE collection_index_status SET status = ?, error_message = ?, updated_at = ?
		WHERE collection_id = ?
	`, string(status), message, formatTime(now), collectionID); err != nil {
		return fmt.Errorf("updating collection status: %w", err)
	}
	if err := refreshCounts(ctx, tx, collectionID, now, false); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RestoreCollectionStatus writes back a snapshot, or removes the status.
func (s *stateStore) RestoreCollectionStatus(
	ctx context.Context,
	collectionID string,
	snapshot *domain.CollectionIndexStatus,
) error {
	if snapshot == nil {
		_, err := s.store.db.ExecContext(ctx,
			"DELETE FROM collection_index_status WHERE collection_id = ?", collectionID)
		if err != nil {
			return fmt.Errorf("removing collection status: %w", err)
		}
		return nil
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO collection_index_status
			(collection_id, status, document_count, segment_count, last_indexed_at, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id) DO UPDATE SET
			status = excluded.status,
			document_count = excluded.document_count,
			segment_count = excluded.segment_count,
			last_indexed_at = excluded.last_indexed_at,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, collectionID, string(snapshot.Status), snapshot.DocumentCount, snapshot.SegmentCount,
		formatNullableTime(snapshot.LastIndexedAt), snapshot.ErrorMessage, formatTime(snapshot.UpdatedAt))
	if err != nil {
		return fmt.Errorf("restoring collection status: %w", err)
	}
	return nil
}

// ListCollectionStatuses returns every collection status.
func (s *stateStore) ListCollectionStatuses(ctx context.Context) ([]domain.CollectionIndexStatus, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT collection_id, status, document_count, segment_count, last_indexed_at, error_message, updated_at
		FROM collection_index_status ORDER BY collection_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying collection statuses: %w", err)
	}
	defer rows.Close()

	var out []domain.CollectionIndexStatus //nolint:prealloc // size unknown from query
	for rows.Next() {
		st, err := scanCollectionStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collection statuses: %w", err)
	}
	return out, nil
}

// transitionError explains why a conditional UPDATE matched no row.
func (s *stateStore) transitionError(ctx context.Context, q querier, documentID string, next domain.JobStatus) error {
	job, err := getJob(ctx, q, documentID)
	if err != nil {
		return err
	}
	return job.Status.CheckTransition(next)
}

// ==================== Helper Functions ====================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, q querier, documentID string) (*domain.DocumentJob, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM document_jobs WHERE document_id = ?`, documentID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", documentID, domain.ErrNotFound)
	}
	return job, err
}

func ensureCollectionStatus(ctx context.Context, q querier, collectionID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO collection_index_status (collection_id, status, updated_at)
		VALUES (?, 'pending', ?)
		ON CONFLICT(collection_id) DO NOTHING
	`, collectionID, formatTime(now))
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return fmt.Errorf("collection %s: %w", collectionID, domain.ErrNotFound)
		}
		return fmt.Errorf("creating collection status: %w", err)
	}
	return nil
}

// refreshCounts recomputes the aggregates from completed jobs.
func refreshCounts(ctx context.Context, q querier, collectionID string, now time.Time, indexed bool) error {
	query := `
		UPDATE collection_index_status SET
			document_count = (SELECT COUNT(*) FROM document_jobs
				WHERE collection_id = ? AND status = 'completed'),
			segment_count = (SELECT COALESCE(SUM(segment_count), 0) FROM document_jobs
				WHERE collection_id = ? AND status = 'completed'),
			updated_at = ?`
	args := []any{collectionID, collectionID, formatTime(now)}
	if indexed {
		query += `, last_indexed_at = ?`
		args = append(args, formatTime(now))
	}
	query += ` WHERE collection_id = ?`
	args = append(args, collectionID)

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("refreshing collection counts: %w", err)
	}
	return nil
}

func scanJob(row scanner) (*domain.DocumentJob, error) {
	var job domain.DocumentJob
	var status, updatedAt string
	var startedAt, completedAt sql.NullString
	if err := row.Scan(&job.DocumentID, &job.CollectionID, &job.SourceURL, &status, &job.SegmentCount,
		&job.ErrorMessage, &job.SourceVersion, &job.Attempts, &startedAt, &completedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.StartedAt = parseNullableTime(startedAt)
	job.CompletedAt = parseNullableTime(completedAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func scanCollectionStatus(row scanner) (*domain.CollectionIndexStatus, error) {
	var st domain.CollectionIndexStatus
	var status, updatedAt string
	var lastIndexed sql.NullString
	if err := row.Scan(&st.CollectionID, &status, &st.DocumentCount, &st.SegmentCount,
		&lastIndexed, &st.ErrorMessage, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning collection status: %w", err)
	}
	st.Status = domain.JobStatus(status)
	st.LastIndexedAt = parseNullableTime(lastIndexed)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}
