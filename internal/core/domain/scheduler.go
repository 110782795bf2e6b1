package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// Collections holds one entry per collection the run indexed.
	Collections []CollectionRunResult
}

// CollectionRunResult is one collection's share of a task run.
type CollectionRunResult struct {
	CollectionID string
	Status       JobStatus
	Completed    int
	Failed       int
	Pending      int
}

// DocumentsCompleted sums completed documents across collections.
func (r TaskResult) DocumentsCompleted() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Completed
	}
	return n
}

// DocumentsFailed sums failed documents across collections.
func (r TaskResult) DocumentsFailed() int {
	n := 0
	for _, c := range r.Collections {
		n += c.Failed
	}
	return n
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Interval is how often pending collections are indexed.
	Interval time.Duration
}

// DefaultSchedulerConfig returns defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:  true,
		Interval: time.Hour,
	}
}

// TaskIDCollectionIndex is the built-in task that indexes pending collections.
const TaskIDCollectionIndex = "collection-index"
