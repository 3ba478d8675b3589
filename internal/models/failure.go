package models

import "time"

// FailureAttempt records one execution attempt's outcome for a task.
// Attempts are append-only: once written they are never mutated.
type FailureAttempt struct {
	TaskID       string
	Iteration    int // 1-based attempt number
	ErrorText    string
	Stdout       string
	Stderr       string
	FilesTouched []string
	CreatedAt    time.Time
}

// FailureStatus enumerates the lifecycle states of a critical failure record.
type FailureStatus string

const (
	FailureOpen      FailureStatus = "open"
	FailureInReview  FailureStatus = "in_review"
	FailureResolved  FailureStatus = "resolved"
	FailureDismissed FailureStatus = "dismissed"
)

// CriticalFailure is a persisted escalation record created when automated
// recovery gives up on a task and a human must act. The referenced task is
// always in needs_review at creation time.
type CriticalFailure struct {
	ID          string // UUID
	TaskID      string
	Severity    Severity
	Title       string
	Description string
	RootCause   string
	Attempts    []FailureAttempt // Full attempt history at escalation time
	Status      FailureStatus
	Notified    bool
	NotifiedAt  *time.Time
	Resolution  string // Notes recorded by the resolving human
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
