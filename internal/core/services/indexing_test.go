package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursemind/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coursemind/internal/core/domain"
)

const (
	limitsText      = "The limit of a function describes its value near a point. A limit may not exist."
	derivativesText = "The derivative measures the rate of change. Each derivative is a limit of difference quotients."
	integralsText   = "An integral accumulates area. The integral reverses the derivative."
)

// seedCalculus registers three documents in calc-101.
func seedCalculus(t *testing.T, env *testEnv) (limits, derivs, integrals string) {
	t.Helper()
	env.addCollection(t, "calc-101", "Calculus")
	limits = env.addDocument(t, "calc-101", "/courses/calc/week_1-limits.pdf", limitsText, "v1")
	derivs = env.addDocument(t, "calc-101", "/courses/calc/week_2-derivatives.pdf", derivativesText, "v1")
	integrals = env.addDocument(t, "calc-101", "/courses/calc/week_3-integrals.pdf", integralsText, "v1")
	return limits, derivs, integrals
}

func segmentCount(t *testing.T, env *testEnv, scope domain.Scope) int {
	t.Helper()
	n, err := env.vectors.CountSegments(context.Background(), scope)
	require.NoError(t, err)
	return n
}

// ==================== IndexCollection Tests ====================

func TestIndexCollection_IndexesEveryDocument(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, _, _ := seedCalculus(t, env)

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	assert.Equal(t, domain.JobCompleted, summary.Status)
	assert.Equal(t, 3, summary.Scheduled)
	assert.Equal(t, 3, summary.Completed)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 3, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))

	job, err := env.indexer.DocumentStatus(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 1, job.SegmentCount)
	assert.Equal(t, "v1", job.SourceVersion)

	status, jobs, err := env.indexer.CollectionStatus(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, status.Status)
	assert.Len(t, jobs, 3)
}

func TestIndexCollection_EmbedsWithCourseMetadata(t *testing.T) {
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/courses/calc/week_1-limits.pdf", limitsText, "v1")

	_, err := env.indexer.IndexCollection(context.Background(), "calc-101")
	require.NoError(t, err)

	require.Len(t, env.provider.batches, 1)
	sent := env.provider.batches[0][0]
	assert.True(t, strings.HasPrefix(sent, "Subject: Calculus\nTopic: week 1 limits\nPage: 1\nContent: "), sent)
}

func TestIndexCollection_UnknownCollection(t *testing.T) {
	env := newTestEnv(t, 1)

	_, err := env.indexer.IndexCollection(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexCollection_FailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 3)
	limits, derivs, integrals := seedCalculus(t, env)
	env.parser.errs["/courses/calc/week_2-derivatives.pdf"] = &domain.ParseError{
		Source: "/courses/calc/week_2-derivatives.pdf",
		Reason: "no extractable text",
	}

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, summary.Status)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[derivs], "no extractable text")

	for id, want := range map[string]domain.JobStatus{
		limits:    domain.JobCompleted,
		derivs:    domain.JobFailed,
		integrals: domain.JobCompleted,
	} {
		job, err := env.indexer.DocumentStatus(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, job.Status, id)
	}
	assert.Zero(t, segmentCount(t, env, domain.Scope{DocumentID: derivs}))
	assert.Equal(t, 2, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))

	status, _, err := env.indexer.CollectionStatus(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, status.Status)
	assert.Contains(t, status.ErrorMessage, "1 document(s) failed: week_2-derivatives.pdf")

	// A permanent parse error is not retried.
	assert.Equal(t, 1, env.objects.fetches["/courses/calc/week_2-derivatives.pdf"])
}

func TestIndexCollection_RetriesTransientFetch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	id := env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.objects.failures["/limits.pdf"] = 2

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 3, env.objects.fetches["/limits.pdf"])

	job, err := env.indexer.DocumentStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)
}

func TestIndexCollection_EmbeddingOutageFailsDocument(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	id := env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.provider.failErr = domain.ErrTransientProvider
	env.provider.failures.Store(100)

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	job, err := env.indexer.DocumentStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "embedding provider failed after 3 attempt(s)")
}

func TestIndexCollection_ReRunDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	_, derivs, _ := seedCalculus(t, env)

	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	calls := env.provider.calls()

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, summary.Scheduled)
	assert.Equal(t, calls, env.provider.calls())
	assert.Equal(t, 3, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))

	// A new version replaces the document's segments.
	env.objects.put("/courses/calc/week_2-derivatives.pdf", derivativesText+" "+strings.Repeat("More about the derivative. ", 60))
	_, err = env.catalogSvc.AddDocument(ctx, domain.SourceDocument{
		ID: derivs, CollectionID: "calc-101", SourceURL: "/courses/calc/week_2-derivatives.pdf", Version: "v2",
	})
	require.NoError(t, err)

	summary, err = env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.Skipped)

	job, err := env.indexer.DocumentStatus(ctx, derivs)
	require.NoError(t, err)
	assert.Equal(t, "v2", job.SourceVersion)
	assert.Equal(t, job.SegmentCount, segmentCount(t, env, domain.Scope{DocumentID: derivs}))
	assert.Greater(t, job.SegmentCount, 1)
	assert.Equal(t, 2+job.SegmentCount, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))
}

func TestIndexCollection_EmptyDocumentCompletesWithoutSegments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	id := env.addDocument(t, "calc-101", "/blank.txt", "   ", "v1")

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)

	job, err := env.indexer.DocumentStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Zero(t, job.SegmentCount)
	assert.Zero(t, env.provider.calls())
}

func TestIndexCollection_DimensionChangeKeepsStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, derivs, _ := seedCalculus(t, env)

	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	before, _, err := env.indexer.CollectionStatus(ctx, "calc-101")
	require.NoError(t, err)

	// Switch to a model with a different vector size and change one document.
	wider := newMockProvider()
	wider.dims = 16
	indexer := env.newIndexer(t, NewEmbeddingClient(wider, WithRetryPolicy(fastPolicy())), 2)
	_, err = env.catalogSvc.AddDocument(ctx, domain.SourceDocument{
		ID: derivs, CollectionID: "calc-101", SourceURL: "/courses/calc/week_2-derivatives.pdf", Version: "v2",
	})
	require.NoError(t, err)

	_, err = indexer.IndexCollection(ctx, "calc-101")
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	after, _, err := indexer.CollectionStatus(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, domain.JobCompleted, after.Status)

	job, err := indexer.DocumentStatus(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 1, segmentCount(t, env, domain.Scope{DocumentID: limits}))

	dim, err := env.vectors.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(vocabulary)+1, dim)
}

func TestIndexCollection_ConcurrentRunsDoNotDoubleProcess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.parser.block()

	type result struct {
		summary *domain.IndexSummary
		err     error
	}
	first := make(chan result, 1)
	go func() {
		s, err := env.indexer.IndexCollection(ctx, "calc-101")
		first <- result{s, err}
	}()
	<-env.parser.started

	second, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Conflicts)
	assert.Zero(t, second.Scheduled)
	assert.Equal(t, domain.JobProcessing, second.Status)

	close(env.parser.gate)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.summary.Completed)
	assert.Equal(t, 1, env.provider.calls())
}

func TestIndexCollection_CancellationLeavesRestPending(t *testing.T) {
	env := newTestEnv(t, 1)
	limits, derivs, integrals := seedCalculus(t, env)
	env.parser.block()

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		summary *domain.IndexSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := env.indexer.IndexCollection(ctx, "calc-101")
		done <- result{s, err}
	}()

	<-env.parser.started
	cancel()
	close(env.parser.gate)
	r := <-done

	require.ErrorIs(t, r.err, domain.ErrCancelled)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, 1, r.summary.Completed)
	assert.Equal(t, 2, r.summary.Pending)
	assert.Equal(t, domain.JobPending, r.summary.Status)

	bg := context.Background()
	completed := 0
	for _, id := range []string{limits, derivs, integrals} {
		job, err := env.indexer.DocumentStatus(bg, id)
		require.NoError(t, err)
		switch job.Status {
		case domain.JobCompleted:
			completed++
		default:
			assert.Equal(t, domain.JobPending, job.Status)
		}
	}
	assert.Equal(t, 1, completed)

	status, _, err := env.indexer.CollectionStatus(bg, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, status.Status)
	assert.Equal(t, domain.ErrCancelled.Error(), status.ErrorMessage)

	// A later run picks up where the cancelled one stopped.
	env.parser.gate = nil
	summary, err := env.indexer.IndexCollection(bg, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, domain.JobCompleted, summary.Status)
}

func TestIndexCollection_InvalidatesRetrievalCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")

	require.NoError(t, env.cache.Set(ctx, RetrievalCachePrefix("calc-101")+"x", []byte("[]"), 0))
	require.NoError(t, env.cache.Set(ctx, RetrievalCachePrefix("")+"y", []byte("[]"), 0))
	require.NoError(t, env.cache.Set(ctx, RetrievalCachePrefix("phys-201")+"z", []byte("[]"), 0))

	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	_, ok, _ := env.cache.Get(ctx, RetrievalCachePrefix("calc-101")+"x")
	assert.False(t, ok)
	_, ok, _ = env.cache.Get(ctx, RetrievalCachePrefix("")+"y")
	assert.False(t, ok)
	_, ok, _ = env.cache.Get(ctx, RetrievalCachePrefix("phys-201")+"z")
	assert.True(t, ok)
}

func TestIndexCollection_FailedReindexInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	require.NoError(t, env.cache.Set(ctx, RetrievalCachePrefix("calc-101")+"x", []byte("[]"), 0))
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v2")
	env.parser.errs["/limits.pdf"] = &domain.ParseError{Source: "/limits.pdf", Reason: "truncated"}

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	_, ok, _ := env.cache.Get(ctx, RetrievalCachePrefix("calc-101")+"x")
	assert.False(t, ok)
}

// beginFailingStore refuses to claim jobs with a storage error.
type beginFailingStore struct {
	*memory.IndexStateStore
	err error
}

func (s *beginFailingStore) Begin(context.Context, string) (*domain.DocumentJob, error) {
	return nil, s.err
}

func TestIndexCollection_UnclaimedJobsStayPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, _, _ := seedCalculus(t, env)

	state := &beginFailingStore{IndexStateStore: env.state, err: errors.New("disk I/O error")}
	indexer, err := NewIndexingOrchestrator(env.catalog, state, env.vectors, env.objects, env.parser, env.embedder,
		WithIndexingRetry(fastRetry))
	require.NoError(t, err)

	summary, err := indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Pending)
	assert.Zero(t, summary.Scheduled)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, domain.JobPending, summary.Status)

	job, err := env.state.GetJob(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
}

// ==================== Stale job recovery Tests ====================

func TestRecoverStale_DeletesSegmentsAndSettles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, derivs, _ := seedCalculus(t, env)
	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	for _, id := range []string{limits, derivs} {
		require.NoError(t, env.state.Schedule(ctx, domain.DocumentJob{DocumentID: id, CollectionID: "calc-101"}))
		_, err := env.state.Begin(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, env.cache.Set(ctx, RetrievalCachePrefix("calc-101")+"x", []byte("[]"), 0))

	stale, err := env.indexer.RecoverStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	for _, job := range stale {
		assert.Equal(t, domain.JobFailed, job.Status)
		assert.Zero(t, segmentCount(t, env, domain.Scope{DocumentID: job.DocumentID}))
	}
	assert.Equal(t, 1, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))

	status, _, err := env.indexer.CollectionStatus(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, status.Status)

	_, ok, _ := env.cache.Get(ctx, RetrievalCachePrefix("calc-101")+"x")
	assert.False(t, ok)

	// Failed jobs wait for a retry, which restores the segments.
	summary, err := env.indexer.RetryCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 3, segmentCount(t, env, domain.Scope{CollectionID: "calc-101"}))
}

func TestRecoverStale_NothingStale(t *testing.T) {
	env := newTestEnv(t, 1)
	seedCalculus(t, env)

	stale, err := env.indexer.RecoverStale(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// touchCountingStore records heartbeats per document.
type touchCountingStore struct {
	*memory.IndexStateStore
	mu      sync.Mutex
	touches map[string]int
}

func (s *touchCountingStore) Touch(ctx context.Context, documentID string) error {
	s.mu.Lock()
	s.touches[documentID]++
	s.mu.Unlock()
	return s.IndexStateStore.Touch(ctx, documentID)
}

func TestIndexCollection_HeartbeatBetweenStages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, derivs, _ := seedCalculus(t, env)
	blank := env.addDocument(t, "calc-101", "/courses/calc/blank.pdf", "   ", "v1")

	state := &touchCountingStore{IndexStateStore: env.state, touches: make(map[string]int)}
	indexer, err := NewIndexingOrchestrator(env.catalog, state, env.vectors, env.objects, env.parser, env.embedder,
		WithIndexingRetry(fastRetry))
	require.NoError(t, err)

	summary, err := indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	require.Equal(t, 4, summary.Completed)

	// Fetch, parse and embed each refresh the job; an empty document
	// has nothing to embed.
	assert.Equal(t, 3, state.touches[limits])
	assert.Equal(t, 3, state.touches[derivs])
	assert.Equal(t, 2, state.touches[blank])
}

func TestIndexCollection_WorkerStopsWhenJobFailedAsStale(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	id := env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.parser.block()

	done := make(chan *domain.IndexSummary, 1)
	go func() {
		s, _ := env.indexer.IndexCollection(ctx, "calc-101")
		done <- s
	}()
	<-env.parser.started

	stale, err := env.indexer.RecoverStale(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	close(env.parser.gate)
	summary := <-done
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[id], "job lost")

	assert.Zero(t, env.provider.calls(), "no embedding after the job was lost")
	assert.Zero(t, segmentCount(t, env, domain.Scope{DocumentID: id}))

	job, err := env.state.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, stale[0].ErrorMessage, job.ErrorMessage)
}

// ==================== Background run Tests ====================

func TestStartCollectionIndex(t *testing.T) {
	env := newTestEnv(t, 2)
	seedCalculus(t, env)

	run, err := env.indexer.StartCollectionIndex(context.Background(), "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.NotEmpty(t, run.ID)

	env.indexer.Wait()

	got, err := env.indexer.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.Completed)
	assert.False(t, got.FinishedAt.IsZero())

	_, err = env.indexer.Run("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, env.indexer.CancelRun("missing"), domain.ErrNotFound)
}

func TestStartCollectionIndex_OutlivesCallerContext(t *testing.T) {
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")

	ctx, cancel := context.WithCancel(context.Background())
	run, err := env.indexer.StartCollectionIndex(ctx, "calc-101")
	require.NoError(t, err)
	cancel()

	env.indexer.Wait()
	got, err := env.indexer.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)
}

func TestStartCollectionIndex_RejectsSecondRunAndCancels(t *testing.T) {
	env := newTestEnv(t, 1)
	seedCalculus(t, env)
	env.parser.block()

	run, err := env.indexer.StartCollectionIndex(context.Background(), "calc-101")
	require.NoError(t, err)
	<-env.parser.started

	_, err = env.indexer.StartCollectionIndex(context.Background(), "calc-101")
	assert.ErrorIs(t, err, domain.ErrAlreadyInProgress)

	require.NoError(t, env.indexer.CancelRun(run.ID))
	close(env.parser.gate)
	env.indexer.Wait()

	got, err := env.indexer.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, got.Status)
	assert.Contains(t, got.Error, "indexing cancelled")
	assert.Equal(t, 2, got.Summary.Pending)
}

func TestStartCollectionIndex_UnknownCollection(t *testing.T) {
	env := newTestEnv(t, 1)

	_, err := env.indexer.StartCollectionIndex(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==================== Maintenance Tests ====================

func TestIndexPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	seedCalculus(t, env)
	env.addCollection(t, "phys-201", "Physics")
	env.addDocument(t, "phys-201", "/phys/forces.pdf", "A force changes motion. Energy is conserved.", "v1")
	env.addCollection(t, "empty", "Nothing")

	summaries, err := env.indexer.IndexPending(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "calc-101", summaries[0].CollectionID)
	assert.Equal(t, "phys-201", summaries[1].CollectionID)

	summaries, err = env.indexer.IndexPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestIndexPending_JoinsCollectionErrors(t *testing.T) {
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.provider.failErr = errBoom
	env.provider.failures.Store(1)

	summaries, err := env.indexer.IndexPending(context.Background())
	require.NoError(t, err, "document failures are reported in the summary")
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Failed)
}

func TestRetryDocumentAndCollection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	_, derivs, _ := seedCalculus(t, env)
	url := "/courses/calc/week_2-derivatives.pdf"
	env.parser.errs[url] = &domain.ParseError{Source: url, Reason: "encrypted"}

	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	// Failed documents wait for an explicit retry.
	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)

	delete(env.parser.errs, url)

	job, err := env.indexer.RetryDocument(ctx, derivs)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)

	summary, err = env.indexer.RetryCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, domain.JobCompleted, summary.Status)

	_, err = env.indexer.RetryDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryCollection_ResetsFailedJobs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")
	env.objects.errs["/limits.pdf"] = errors.New("permission denied")

	summary, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	delete(env.objects.errs, "/limits.pdf")
	summary, err = env.indexer.RetryCollection(ctx, "calc-101")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 2)
	limits, _, _ := seedCalculus(t, env)

	_, err := env.indexer.IndexCollection(ctx, "calc-101")
	require.NoError(t, err)

	require.NoError(t, env.indexer.DeleteDocument(ctx, limits))

	assert.Zero(t, segmentCount(t, env, domain.Scope{DocumentID: limits}))
	_, err = env.indexer.DocumentStatus(ctx, limits)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.catalogSvc.GetDocument(ctx, limits)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.indexer.DeleteDocument(ctx, limits), domain.ErrNotFound)
}

func TestDeleteDocument_RefusesProcessing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")
	id := env.addDocument(t, "calc-101", "/limits.pdf", limitsText, "v1")

	require.NoError(t, env.state.Schedule(ctx, domain.DocumentJob{DocumentID: id, CollectionID: "calc-101"}))
	_, err := env.state.Begin(ctx, id)
	require.NoError(t, err)

	assert.ErrorIs(t, env.indexer.DeleteDocument(ctx, id), domain.ErrAlreadyInProgress)
}

func TestCollectionStatus_NeverIndexed(t *testing.T) {
	env := newTestEnv(t, 1)
	env.addCollection(t, "calc-101", "Calculus")

	status, jobs, err := env.indexer.CollectionStatus(context.Background(), "calc-101")
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, status.Status)
	assert.Empty(t, jobs)

	_, _, err = env.indexer.CollectionStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSegmentID(t *testing.T) {
	a := SegmentID("doc-a", 0)
	assert.Equal(t, a, SegmentID("doc-a", 0))
	assert.NotEqual(t, a, SegmentID("doc-a", 1))
	assert.NotEqual(t, a, SegmentID("doc-b", 0))
	assert.Len(t, a, 36)
}

func TestNewIndexingOrchestrator_InvalidSegmentSizes(t *testing.T) {
	env := newTestEnv(t, 1)
	settings := domain.DefaultSettings().Indexing
	settings.ChunkOverlap = settings.ChunkSize

	_, err := NewIndexingOrchestrator(env.catalog, env.state, env.vectors, env.objects, env.parser, env.embedder,
		WithIndexingSettings(settings))
	assert.Error(t, err)
}

func TestIndexSummary_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.IndexSummary{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, s.Duration())
}
