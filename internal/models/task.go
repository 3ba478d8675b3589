package models

import (
	"errors"
	"time"
)

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskInProgress  TaskStatus = "in_progress"
	TaskCompleted   TaskStatus = "completed"
	TaskFailed      TaskStatus = "failed"
	TaskNeedsReview TaskStatus = "needs_review"
	TaskSuperseded  TaskStatus = "superseded"
)

// taskTransitions is the allow-list of legal task status transitions.
// Any transition not listed here is rejected.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:     {TaskInProgress, TaskSuperseded},
	TaskInProgress:  {TaskCompleted, TaskFailed, TaskNeedsReview, TaskSuperseded},
	TaskFailed:      {TaskPending, TaskNeedsReview, TaskSuperseded},
	TaskNeedsReview: {TaskPending, TaskSuperseded},
	TaskCompleted:   {},
	TaskSuperseded:  {},
}

// ErrInvalidTransition indicates a status change not present in the transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether moving from s to next is allowed.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is final for wave-advancement purposes.
// A needs_review task is NOT terminal: it stalls its wave until a human acts.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskSuperseded
}

// ComplexityTier classifies the expected difficulty of a task.
type ComplexityTier string

const (
	ComplexitySimple ComplexityTier = "simple"
	ComplexityMedium ComplexityTier = "medium"
)

// Task represents a single unit of generation/execution work assigned to an agent.
type Task struct {
	ID            string         // UUID
	ProjectID     string         // Owning project
	WaveNumber    int            // Wave this task belongs to
	Agent         string         // Agent category (e.g., "backend", "testing")
	Status        TaskStatus
	Priority      int            // Lower value = higher priority
	RetryCount    int            // Attempts so far in the current retry cycle
	Title         string
	Description   string
	EstimatedSize int            // Estimated output size in units
	Complexity    ComplexityTier
	Output        string         // Successful output payload
	ErrorText     string         // Last failure summary
	AuxiliaryInput string        // Simplified prompt attached by recovery, if any
	SourceTaskID  string         // Back-reference to a superseded parent (split children)
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Validate checks that the task has all required fields.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.Description == "" {
		return errors.New("task description is required")
	}
	if t.Complexity != ComplexitySimple && t.Complexity != ComplexityMedium {
		return errors.New("task complexity must be simple or medium")
	}
	return nil
}

// Prompt returns the effective prompt for the next execution attempt.
// Recovery may attach a simplified description that takes precedence.
func (t *Task) Prompt() string {
	if t.AuxiliaryInput != "" {
		return t.AuxiliaryInput
	}
	return t.Description
}
