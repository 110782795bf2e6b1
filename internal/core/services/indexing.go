package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
	"github.com/custodia-labs/coursemind/internal/retry"
	"github.com/custodia-labs/coursemind/internal/segmenter"
)

// Ensure IndexingOrchestrator implements the interface.
var _ driving.IndexingService = (*IndexingOrchestrator)(nil)

// segmentNamespace seeds deterministic segment IDs.
var segmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://coursemind.dev/segments"))

// errNotStarted marks a job whose Begin failed for a reason other than
// a conflict; it was never claimed and stays pending.
var errNotStarted = errors.New("job not started")

// errJobLost marks a job taken away from its worker mid-flight, e.g.
// failed as stale. Its state is no longer the worker's to record.
var errJobLost = errors.New("job lost")

// SegmentID returns the stable ID of a document's n-th segment.
func SegmentID(documentID string, sequence int) string {
	return uuid.NewSHA1(segmentNamespace, []byte(documentID+"#"+strconv.Itoa(sequence))).String()
}

// IndexingOrchestrator runs document jobs on a bounded worker pool.
//
// Each job goes Begin, fetch, parse, segment, embed, upsert, Complete.
// A failing job deletes its segments and is marked failed; its siblings
// keep going. A dimension mismatch stops the run and restores the
// collection status that existed before it.
type IndexingOrchestrator struct {
	catalog  driven.CatalogStore
	state    driven.IndexStateStore
	vectors  driven.VectorIndex
	objects  driven.ObjectStore
	parser   driven.Parser
	embedder *EmbeddingClient
	cache    driven.Cache

	segmenter *segmenter.Segmenter
	settings  domain.IndexingSettings
	retry     domain.RetrySettings
	now       func() time.Time

	mu   sync.Mutex
	runs map[string]*backgroundRun
	wg   sync.WaitGroup
}

type backgroundRun struct {
	run    domain.IndexRun
	cancel context.CancelFunc
}

// IndexingOption configures an IndexingOrchestrator.
type IndexingOption func(*IndexingOrchestrator)

// WithIndexingSettings sets pool size, segment sizes and call timeouts.
func WithIndexingSettings(s domain.IndexingSettings) IndexingOption {
	return func(o *IndexingOrchestrator) { o.settings = s }
}

// WithIndexingRetry sets the retry budget for fetch, parse and persist calls.
func WithIndexingRetry(s domain.RetrySettings) IndexingOption {
	return func(o *IndexingOrchestrator) { o.retry = s }
}

// WithInvalidationCache sets the cache whose retrieval entries are dropped
// when documents change.
func WithInvalidationCache(c driven.Cache) IndexingOption {
	return func(o *IndexingOrchestrator) { o.cache = c }
}

// NewIndexingOrchestrator creates an orchestrator.
func NewIndexingOrchestrator(
	catalog driven.CatalogStore,
	state driven.IndexStateStore,
	vectors driven.VectorIndex,
	objects driven.ObjectStore,
	parser driven.Parser,
	embedder *EmbeddingClient,
	opts ...IndexingOption,
) (*IndexingOrchestrator, error) {
	defaults := domain.DefaultSettings()
	o := &IndexingOrchestrator{
		catalog:  catalog,
		state:    state,
		vectors:  vectors,
		objects:  objects,
		parser:   parser,
		embedder: embedder,
		settings: defaults.Indexing,
		retry:    defaults.Retry,
		now:      time.Now,
		runs:     make(map[string]*backgroundRun),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.settings.MaxParallel < 1 {
		o.settings.MaxParallel = 1
	}

	seg, err := segmenter.New(
		segmenter.WithChunkSize(o.settings.ChunkSize),
		segmenter.WithOverlap(o.settings.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}
	o.segmenter = seg
	return o, nil
}

// ==================== Collection runs ====================

// IndexCollection indexes the documents of a collection that need it.
//
//nolint:gocyclo // run bookkeeping is sequential by nature
func (o *IndexingOrchestrator) IndexCollection(ctx context.Context, collectionID string) (*domain.IndexSummary, error) {
	coll, err := o.catalog.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	docs, err := o.catalog.ListDocuments(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	snapshot, err := o.state.GetCollectionStatus(ctx, collectionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get collection status: %w", err)
	}

	summary := &domain.IndexSummary{
		CollectionID: collectionID,
		Failures:     make(map[string]string),
		StartedAt:    o.now(),
	}

	logger.Section("Indexing " + collectionID)

	toRun, err := o.plan(ctx, docs, summary)
	if err != nil {
		return nil, err
	}

	if len(toRun) > 0 {
		if err := o.state.SetCollectionState(ctx, collectionID, domain.JobProcessing, ""); err != nil {
			return nil, fmt.Errorf("mark collection processing: %w", err)
		}
	}

	fatal := o.runJobs(ctx, coll, toRun, summary)
	summary.FinishedAt = o.now()

	// Bookkeeping must finish even if the caller has gone away.
	bookCtx := context.WithoutCancel(ctx)

	if fatal != nil {
		if err := o.state.RestoreCollectionStatus(bookCtx, collectionID, snapshot); err != nil {
			logger.Error("restore status of %s: %v", collectionID, err)
		}
		if snapshot != nil {
			summary.Status = snapshot.Status
		}
		logger.Error("indexing %s stopped: %v", collectionID, fatal)
		return summary, fatal
	}

	if summary.Pending > 0 && ctx.Err() != nil {
		if err := o.state.SetCollectionState(bookCtx, collectionID, domain.JobPending, domain.ErrCancelled.Error()); err != nil {
			logger.Error("mark %s cancelled: %v", collectionID, err)
		}
		summary.Status = domain.JobPending
		logger.Warn("indexing %s cancelled with %d document(s) not started", collectionID, summary.Pending)
		return summary, fmt.Errorf("%w: %w", domain.ErrCancelled, ctx.Err())
	}

	status, message, err := o.settle(bookCtx, collectionID, docs)
	if err != nil {
		return summary, err
	}
	summary.Status = status

	logger.Info("Indexed %s: %d completed, %d failed, %d skipped in %s",
		collectionID, summary.Completed, summary.Failed, summary.Skipped, summary.Duration().Round(time.Millisecond))
	if message != "" {
		logger.Warn("%s: %s", collectionID, message)
	}
	return summary, nil
}

// plan schedules documents that need indexing and returns them.
func (o *IndexingOrchestrator) plan(ctx context.Context, docs []domain.SourceDocument, summary *domain.IndexSummary) ([]domain.SourceDocument, error) {
	toRun := make([]domain.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		job, err := o.state.GetJob(ctx, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get job %s: %w", doc.ID, err)
		}
		if job != nil && job.Status == domain.JobProcessing {
			summary.Conflicts++
			continue
		}
		if !job.NeedsIndexing(doc.Version) {
			summary.Skipped++
			continue
		}

		err = o.state.Schedule(ctx, domain.DocumentJob{
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			SourceURL:    doc.SourceURL,
		})
		if errors.Is(err, domain.ErrAlreadyInProgress) {
			summary.Conflicts++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", doc.ID, err)
		}
		toRun = append(toRun, doc)
	}
	return toRun, nil
}

// runJobs runs docs on the pool and returns the error that stopped the
// run, if any. Documents not started because of cancellation or a fatal
// error stay pending.
func (o *IndexingOrchestrator) runJobs(ctx context.Context, coll *domain.Collection, docs []domain.SourceDocument, summary *domain.IndexSummary) error {
	var (
		mu      sync.Mutex
		stopped atomic.Bool
		fatal   error
	)
	// In-flight documents finish even when the run is cancelled.
	jobCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(o.settings.MaxParallel)

	for _, doc := range docs {
		g.Go(func() error {
			if ctx.Err() != nil || stopped.Load() {
				mu.Lock()
				summary.Pending++
				mu.Unlock()
				return nil
			}

			segments, err := o.indexDocument(jobCtx, coll, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Scheduled++
				summary.Completed++
				logger.Info("  %s: %d segments", doc.DisplayName(), segments)
			case errors.Is(err, domain.ErrAlreadyInProgress):
				summary.Conflicts++
			case errors.Is(err, errNotStarted):
				// The job was never claimed and is still pending.
				summary.Pending++
				logger.Warn("  %s not started: %v", doc.DisplayName(), err)
			default:
				summary.Scheduled++
				summary.Failed++
				summary.Failures[doc.ID] = err.Error()
				logger.Warn("  %s failed: %v", doc.DisplayName(), err)
				if errors.Is(err, domain.ErrDimensionMismatch) && fatal == nil {
					fatal = err
					stopped.Store(true)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return fatal
}

// settle derives the collection status from the jobs of every catalog
// document and stores it.
func (o *IndexingOrchestrator) settle(ctx context.Context, collectionID string, docs []domain.SourceDocument) (domain.JobStatus, string, error) {
	jobs, err := o.state.ListJobs(ctx, collectionID)
	if err != nil {
		return "", "", fmt.Errorf("list jobs: %w", err)
	}
	byDoc := make(map[string]domain.DocumentJob, len(jobs))
	for _, j := range jobs {
		byDoc[j.DocumentID] = j
	}

	var failed []string
	busy, waiting := false, false
	for _, doc := range docs {
		job, ok := byDoc[doc.ID]
		switch {
		case !ok || job.Status == domain.JobPending:
			waiting = true
		case job.Status == domain.JobFailed:
			failed = append(failed, doc.DisplayName())
		case job.Status == domain.JobProcessing:
			busy = true
		}
	}

	status, message := domain.JobCompleted, ""
	switch {
	case len(failed) > 0:
		sort.Strings(failed)
		status = domain.JobFailed
		message = fmt.Sprintf("%d document(s) failed: %s", len(failed), strings.Join(failed, ", "))
	case busy:
		status = domain.JobProcessing
	case waiting:
		status = domain.JobPending
	}

	if err := o.state.SetCollectionState(ctx, collectionID, status, message); err != nil {
		return "", "", fmt.Errorf("set collection status: %w", err)
	}
	return status, message, nil
}

// ==================== Document jobs ====================

// indexDocument runs one job. On failure the document's segments are
// deleted before the job is marked failed.
func (o *IndexingOrchestrator) indexDocument(ctx context.Context, coll *domain.Collection, doc domain.SourceDocument) (int, error) {
	if _, err := o.state.Begin(ctx, doc.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyInProgress) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", errNotStarted, err)
	}
	// Completed or failed, the document's segments have changed.
	defer o.invalidate(ctx, doc.CollectionID)

	segments, err := o.process(ctx, coll, doc)
	if err == nil {
		err = o.persist(ctx, doc, segments)
	}
	if err != nil {
		o.fail(ctx, doc, err)
		return 0, err
	}
	return len(segments), nil
}

// heartbeat refreshes the job so it is not taken for abandoned. It fails
// when the job is no longer ours, e.g. it was failed as stale.
func (o *IndexingOrchestrator) heartbeat(ctx context.Context, documentID string) error {
	err := o.state.Touch(ctx, documentID)
	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", errJobLost, err)
	}
	if err != nil {
		logger.Warn("heartbeat %s: %v", documentID, err)
	}
	return nil
}

// process fetches, parses, segments and embeds a document.
func (o *IndexingOrchestrator) process(ctx context.Context, coll *domain.Collection, doc domain.SourceDocument) ([]domain.Segment, error) {
	done := logger.Stage("fetch " + doc.ID)
	fetchPolicy := retry.FromSettings(o.retry, o.settings.FetchTimeout)
	raw, _, err := retry.Value(ctx, fetchPolicy, "fetch "+doc.ID, func(ctx context.Context) (*domain.RawDocument, error) {
		return o.objects.Fetch(ctx, doc.SourceURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	done()
	if err := o.heartbeat(ctx, doc.ID); err != nil {
		return nil, err
	}

	done = logger.Stage("parse " + doc.ID)
	parsePolicy := retry.FromSettings(o.retry, o.settings.ParseTimeout)
	parsed, _, err := retry.Value(ctx, parsePolicy, "parse "+doc.ID, func(ctx context.Context) (*domain.ParsedDocument, error) {
		return o.parser.Parse(ctx, raw)
	})
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	done()
	if err := o.heartbeat(ctx, doc.ID); err != nil {
		return nil, err
	}

	drafts := o.segmenter.Segment(parsed.Text, parsed.Pages)
	if len(drafts) == 0 {
		return nil, nil
	}

	subject := doc.Subject
	if subject == "" {
		subject = coll.Subject
	}
	topic := doc.EffectiveTopic()

	inputs := make([]EmbedInput, len(drafts))
	for i, d := range drafts {
		inputs[i] = EmbedInput{
			Text: d.Text,
			Meta: domain.EmbedMeta{Subject: subject, Topic: topic, Page: d.PageNumber},
		}
	}
	done = logger.Stage(fmt.Sprintf("embed %s (%d segments)", doc.ID, len(inputs)))
	vectors, err := o.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	done()
	if err := o.heartbeat(ctx, doc.ID); err != nil {
		return nil, err
	}

	now := o.now()
	segments := make([]domain.Segment, len(drafts))
	for i, d := range drafts {
		segments[i] = domain.Segment{
			ID:            SegmentID(doc.ID, d.SequenceIndex),
			DocumentID:    doc.ID,
			CollectionID:  doc.CollectionID,
			SourceName:    doc.DisplayName(),
			Text:          d.Text,
			SequenceIndex: d.SequenceIndex,
			TotalSegments: d.TotalSegments,
			PageNumber:    d.PageNumber,
			Embedding:     vectors[i],
			CreatedAt:     now,
		}
	}
	return segments, nil
}

// persist replaces the document's segments and completes the job.
func (o *IndexingOrchestrator) persist(ctx context.Context, doc domain.SourceDocument, segments []domain.Segment) error {
	policy := retry.FromSettings(o.retry, o.settings.PersistTimeout)

	_, err := policy.Do(ctx, "upsert "+doc.ID, func(ctx context.Context) error {
		if len(segments) == 0 {
			return o.vectors.DeleteDocument(ctx, doc.ID)
		}
		return o.vectors.Upsert(ctx, segments)
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	_, err = policy.Do(ctx, "complete "+doc.ID, func(ctx context.Context) error {
		return o.state.Complete(ctx, doc.ID, len(segments), doc.Version)
	})
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

func (o *IndexingOrchestrator) fail(ctx context.Context, doc domain.SourceDocument, cause error) {
	policy := retry.FromSettings(o.retry, o.settings.PersistTimeout)
	if _, err := policy.Do(ctx, "delete segments "+doc.ID, func(ctx context.Context) error {
		return o.vectors.DeleteDocument(ctx, doc.ID)
	}); err != nil {
		logger.Error("delete segments of %s: %v", doc.ID, err)
	}
	if errors.Is(cause, errJobLost) {
		return
	}
	if _, err := policy.Do(ctx, "fail "+doc.ID, func(ctx context.Context) error {
		return o.state.Fail(ctx, doc.ID, cause.Error())
	}); err != nil {
		logger.Error("mark %s failed: %v", doc.ID, err)
	}
}

// invalidate drops cached retrieval results that may include the collection.
func (o *IndexingOrchestrator) invalidate(ctx context.Context, collectionID string) {
	if o.cache == nil {
		return
	}
	for _, prefix := range []string{RetrievalCachePrefix(collectionID), RetrievalCachePrefix("")} {
		if err := o.cache.DeletePrefix(ctx, prefix); err != nil {
			logger.Warn("invalidate %s: %v", prefix, err)
		}
	}
}

// ==================== Background runs ====================

// StartCollectionIndex runs IndexCollection in the background. The run
// outlives ctx; stop it with CancelRun.
func (o *IndexingOrchestrator) StartCollectionIndex(ctx context.Context, collectionID string) (*domain.IndexRun, error) {
	if _, err := o.catalog.GetCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	o.mu.Lock()
	for _, br := range o.runs {
		if br.run.CollectionID == collectionID && br.run.Status == domain.RunRunning {
			o.mu.Unlock()
			return nil, fmt.Errorf("collection %s: %w (run %s)", collectionID, domain.ErrAlreadyInProgress, br.run.ID)
		}
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	br := &backgroundRun{
		run: domain.IndexRun{
			ID:           uuid.NewString(),
			CollectionID: collectionID,
			Status:       domain.RunRunning,
			StartedAt:    o.now(),
		},
		cancel: cancel,
	}
	o.runs[br.run.ID] = br
	started := br.run
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		summary, err := o.IndexCollection(runCtx, collectionID)

		o.mu.Lock()
		defer o.mu.Unlock()
		br.run.Summary = summary
		br.run.FinishedAt = o.now()
		switch {
		case err == nil:
			br.run.Status = domain.RunCompleted
		case errors.Is(err, domain.ErrCancelled):
			br.run.Status = domain.RunCancelled
			br.run.Error = err.Error()
		default:
			br.run.Status = domain.RunFailed
			br.run.Error = err.Error()
		}
	}()

	return &started, nil
}

// Run returns a snapshot of a background run.
func (o *IndexingOrchestrator) Run(runID string) (*domain.IndexRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	br, ok := o.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	run := br.run
	return &run, nil
}

// CancelRun stops a background run from starting more documents.
func (o *IndexingOrchestrator) CancelRun(runID string) error {
	o.mu.Lock()
	br, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	br.cancel()
	return nil
}

// Wait blocks until every background run has finished.
func (o *IndexingOrchestrator) Wait() {
	o.wg.Wait()
}

// ==================== Maintenance ====================

// RecoverStale fails processing jobs whose heartbeat is older than
// before, deletes their segments and settles their collections.
func (o *IndexingOrchestrator) RecoverStale(ctx context.Context, before time.Time) ([]domain.DocumentJob, error) {
	stale, err := o.state.FailStale(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}

	var errs []error
	seen := make(map[string]bool)
	var collections []string
	for _, job := range stale {
		if err := o.vectors.DeleteDocument(ctx, job.DocumentID); err != nil {
			errs = append(errs, fmt.Errorf("delete segments of %s: %w", job.DocumentID, err))
		}
		if !seen[job.CollectionID] {
			seen[job.CollectionID] = true
			collections = append(collections, job.CollectionID)
		}
	}

	for _, id := range collections {
		o.invalidate(ctx, id)
		docs, err := o.catalog.ListDocuments(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", id, err))
			continue
		}
		if _, _, err := o.settle(ctx, id, docs); err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", id, err))
		}
	}
	return stale, errors.Join(errs...)
}

// IndexPending indexes each collection with documents that need it.
func (o *IndexingOrchestrator) IndexPending(ctx context.Context) ([]domain.IndexSummary, error) {
	colls, err := o.catalog.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	var summaries []domain.IndexSummary //nolint:prealloc // only collections with work
	var errs []error
	for _, coll := range colls {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		needed, err := o.needsWork(ctx, coll.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !needed {
			continue
		}

		summary, err := o.IndexCollection(ctx, coll.ID)
		if summary != nil {
			summaries = append(summaries, *summary)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("collection %s: %w", coll.ID, err))
			if errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrCancelled) {
				break
			}
		}
	}
	return summaries, errors.Join(errs...)
}

func (o *IndexingOrchestrator) needsWork(ctx context.Context, collectionID string) (bool, error) {
	docs, err := o.catalog.ListDocuments(ctx, collectionID)
	if err != nil {
		return false, fmt.Errorf("list documents: %w", err)
	}
	jobs, err := o.state.ListJobs(ctx, collectionID)
	if err != nil {
		return false, fmt.Errorf("list jobs: %w", err)
	}
	byDoc := make(map[string]*domain.DocumentJob, len(jobs))
	for i := range jobs {
		byDoc[jobs[i].DocumentID] = &jobs[i]
	}
	for _, doc := range docs {
		if byDoc[doc.ID].NeedsIndexing(doc.Version) {
			return true, nil
		}
	}
	return false, nil
}

// RetryDocument moves a failed document back to pending.
func (o *IndexingOrchestrator) RetryDocument(ctx context.Context, documentID string) (*domain.DocumentJob, error) {
	job, err := o.state.Retry(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("retry %s: %w", documentID, err)
	}
	return job, nil
}

// RetryCollection resets failed documents and indexes the collection.
func (o *IndexingOrchestrator) RetryCollection(ctx context.Context, collectionID string) (*domain.IndexSummary, error) {
	jobs, err := o.state.ListJobs(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	for _, job := range jobs {
		if job.Status != domain.JobFailed {
			continue
		}
		if _, err := o.state.Retry(ctx, job.DocumentID); err != nil {
			return nil, fmt.Errorf("retry %s: %w", job.DocumentID, err)
		}
	}
	return o.IndexCollection(ctx, collectionID)
}

// DeleteDocument removes a document's segments, job and catalog entry.
func (o *IndexingOrchestrator) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := o.catalog.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	job, err := o.state.GetJob(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get job: %w", err)
	}
	if job != nil && job.Status == domain.JobProcessing {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyInProgress)
	}

	if err := o.vectors.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	if err := o.state.DeleteJob(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete job: %w", err)
	}
	if err := o.catalog.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	o.invalidate(ctx, doc.CollectionID)
	return nil
}

// DocumentStatus returns the job of a document.
func (o *IndexingOrchestrator) DocumentStatus(ctx context.Context, documentID string) (*domain.DocumentJob, error) {
	return o.state.GetJob(ctx, documentID)
}

// CollectionStatus returns the collection status and its jobs. A
// collection that was never indexed reports pending.
func (o *IndexingOrchestrator) CollectionStatus(ctx context.Context, collectionID string) (*domain.CollectionIndexStatus, []domain.DocumentJob, error) {
	if _, err := o.catalog.GetCollection(ctx, collectionID); err != nil {
		return nil, nil, fmt.Errorf("get collection: %w", err)
	}
	status, err := o.state.GetCollectionStatus(ctx, collectionID)
	if errors.Is(err, domain.ErrNotFound) {
		status = &domain.CollectionIndexStatus{CollectionID: collectionID, Status: domain.JobPending}
	} else if err != nil {
		return nil, nil, fmt.Errorf("get collection status: %w", err)
	}
	jobs, err := o.state.ListJobs(ctx, collectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list jobs: %w", err)
	}
	return status, jobs, nil
}
