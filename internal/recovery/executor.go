package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/notify"
)

// Store is the record-store surface the executor mutates. Defined here so
// tests can supply fakes.
type Store interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	MarkTaskNeedsReview(ctx context.Context, id string, from models.TaskStatus, diagnostic string) error
	CreateCriticalFailure(ctx context.Context, cf *models.CriticalFailure) (bool, error)
	MarkFailureNotified(ctx context.Context, id string) error
	SupersedeTask(ctx context.Context, source *models.Task, proposals []models.SubTaskProposal) error
	ResetTaskForRetry(ctx context.Context, id string, from models.TaskStatus, auxiliaryInput string) error
}

// taskLockManager serializes recovery mutations per task id. A single task
// is never concurrently mutated by two recovery decisions.
type taskLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTaskLockManager() *taskLockManager {
	return &taskLockManager{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-task lock and returns its release function.
func (m *taskLockManager) Lock(taskID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[taskID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Executor applies a recovery strategy as a state transition.
type Executor struct {
	store    Store
	notifier notify.Notifier
	logger   Logger
	locks    *taskLockManager
}

// NewExecutor creates an Executor. notifier and logger may be nil.
func NewExecutor(store Store, notifier notify.Notifier, logger Logger) *Executor {
	return &Executor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    newTaskLockManager(),
	}
}

// Apply executes the chosen strategy for a task. The mutation is serialized
// per task id and idempotent: replaying a decision against a task that
// already left the failed state is a no-op.
func (e *Executor) Apply(ctx context.Context, task *models.Task, strategy models.RecoveryStrategy, attempts []models.FailureAttempt) error {
	unlock := e.locks.Lock(task.ID)
	defer unlock()

	// Re-read under the lock so the decision applies to current state.
	current, err := e.store.GetTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("read task %s: %w", task.ID, err)
	}
	if current.Status == models.TaskSuperseded || current.Status == models.TaskCompleted {
		e.debugf("recovery for task %s skipped: already %s", task.ID, current.Status)
		return nil
	}

	switch strategy.Action {
	case models.ActionHumanReview, models.ActionEscalate:
		return e.escalate(ctx, current, strategy, attempts)
	case models.ActionSplit:
		return e.split(ctx, current, strategy)
	case models.ActionSimplify, models.ActionRetry:
		return e.reset(ctx, current, strategy)
	default:
		return fmt.Errorf("unknown recovery action %q", strategy.Action)
	}
}

// escalate parks the task for human review and raises a critical failure.
// Notification is fire-and-forget: its failure never rolls back the
// transition that triggered it.
func (e *Executor) escalate(ctx context.Context, task *models.Task, strategy models.RecoveryStrategy, attempts []models.FailureAttempt) error {
	if task.Status != models.TaskNeedsReview {
		if err := e.store.MarkTaskNeedsReview(ctx, task.ID, task.Status, strategy.Reason); err != nil {
			return fmt.Errorf("mark task needs_review: %w", err)
		}
	}

	severity := strategy.Severity
	if severity == "" {
		severity = models.SeverityHigh
	}
	rootCause := strategy.Reason
	cf := &models.CriticalFailure{
		TaskID:      task.ID,
		Severity:    severity,
		Title:       fmt.Sprintf("Task escalated: %s", task.Title),
		Description: strategy.Reason,
		RootCause:   rootCause,
		Attempts:    attempts,
	}
	created, err := e.store.CreateCriticalFailure(ctx, cf)
	if err != nil {
		return fmt.Errorf("create critical failure: %w", err)
	}
	if !created {
		e.debugf("task %s already has an open critical failure", task.ID)
		return nil
	}

	e.infof("task %s escalated to human review: %s", task.ID, strategy.Reason)

	if e.notifier != nil {
		payload := notify.Payload{
			Title:    cf.Title,
			Body:     strategy.Reason,
			Severity: severity,
			TaskID:   task.ID,
		}
		if err := e.notifier.Notify(ctx, task.ProjectID, payload); err != nil {
			e.warnf("notification for task %s failed: %v", task.ID, err)
		} else if err := e.store.MarkFailureNotified(ctx, cf.ID); err != nil {
			e.warnf("marking failure %s notified failed: %v", cf.ID, err)
		}
	}
	return nil
}

// split supersedes the task with its sub-task proposals. Idempotence lives
// in the store: child creation is keyed by source-task id.
func (e *Executor) split(ctx context.Context, task *models.Task, strategy models.RecoveryStrategy) error {
	if len(strategy.SubTasks) == 0 {
		return fmt.Errorf("split strategy for task %s has no sub-tasks", task.ID)
	}
	if err := e.store.SupersedeTask(ctx, task, strategy.SubTasks); err != nil {
		return fmt.Errorf("supersede task %s: %w", task.ID, err)
	}
	e.infof("task %s superseded by %d sub-tasks", task.ID, len(strategy.SubTasks))
	return nil
}

// reset returns the task to pending with a clean retry cycle, attaching the
// simplified prompt when present.
func (e *Executor) reset(ctx context.Context, task *models.Task, strategy models.RecoveryStrategy) error {
	if err := e.store.ResetTaskForRetry(ctx, task.ID, task.Status, strategy.SimplifiedPrompt); err != nil {
		return fmt.Errorf("reset task %s: %w", task.ID, err)
	}
	e.infof("task %s reset for %s: %s", task.ID, strategy.Action, strategy.Reason)
	return nil
}

func (e *Executor) debugf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, args...)
	}
}

func (e *Executor) infof(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Infof(format, args...)
	}
}

func (e *Executor) warnf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warnf(format, args...)
	}
}
