package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// historyKeep is how many results are kept per task.
	historyKeep = 100

	// defaultStaleAfter is how long a processing job may go without a
	// heartbeat before a restarted daemon treats it as abandoned.
	defaultStaleAfter = 30 * time.Minute

	defaultTickInterval = time.Minute
)

// StaleJobRecoverer fails jobs abandoned in processing and removes their
// partial output.
type StaleJobRecoverer interface {
	RecoverStale(ctx context.Context, before time.Time) ([]domain.DocumentJob, error)
}

// Scheduler manages background task execution.
// It is a pure core service with no external control API.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	stale    StaleJobRecoverer
	indexing driving.IndexingService

	staleAfter time.Duration
	tick       time.Duration
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithStaleAfter sets how long a processing job may go without a heartbeat
// before it is failed on start.
func WithStaleAfter(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithTickInterval sets how often due tasks are checked.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	stale StaleJobRecoverer,
	indexing driving.IndexingService,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		config:     config,
		store:      store,
		stale:      stale,
		indexing:   indexing,
		staleAfter: defaultStaleAfter,
		tick:       defaultTickInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.recoverStaleJobs(ctx)

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// recoverStaleJobs fails jobs left in processing by a previous process so
// they can be retried.
func (s *Scheduler) recoverStaleJobs(ctx context.Context) {
	if s.stale == nil {
		return
	}
	stale, err := s.stale.RecoverStale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		logger.Error("scheduler: failed to recover stale jobs: %v", err)
	}
	if len(stale) > 0 {
		logger.Warn("scheduler: failed %d stale processing job(s)", len(stale))
	}
}

// initialiseTasks ensures the indexing task exists in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	return s.ensureTask(ctx, domain.TaskIDCollectionIndex, "Collection Index")
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		// First start runs immediately.
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: s.config.Interval,
			Enabled:  s.config.Enabled,
			NextRun:  s.now(),
		}
	} else {
		if task.Interval != s.config.Interval {
			task.Interval = s.config.Interval
			task.NextRun = s.now().Add(s.config.Interval)
		}
		task.Enabled = s.config.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task in the background. A task whose previous
// run has not finished is skipped by pushing NextRun forward first.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	task.NextRun = s.now().Add(task.Interval)
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: failed to save task %s: %v", task.ID, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDCollectionIndex:
			result.Collections, err = s.runCollectionIndex(ctx)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = s.now()
		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		// The loop context may already be cancelled; bookkeeping still lands.
		saveCtx := context.WithoutCancel(ctx)
		if saveErr := s.store.SaveTask(saveCtx, task); saveErr != nil {
			logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(saveCtx, result); recordErr != nil {
			logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(saveCtx, historyKeep); pruneErr != nil {
			logger.Error("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// runCollectionIndex indexes every collection with outstanding work and
// returns each collection's counts.
func (s *Scheduler) runCollectionIndex(ctx context.Context) ([]domain.CollectionRunResult, error) {
	if s.indexing == nil {
		return nil, nil
	}

	summaries, err := s.indexing.IndexPending(ctx)
	results := make([]domain.CollectionRunResult, 0, len(summaries))
	completed := 0
	for _, sum := range summaries {
		results = append(results, domain.CollectionRunResult{
			CollectionID: sum.CollectionID,
			Status:       sum.Status,
			Completed:    sum.Completed,
			Failed:       sum.Failed,
			Pending:      sum.Pending,
		})
		completed += sum.Completed
	}
	if err != nil {
		return results, err
	}
	logger.Debug("scheduler: indexed %d document(s) across %d collection(s)", completed, len(summaries))
	return results, nil
}
