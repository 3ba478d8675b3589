package models

import "time"

// WaveStatus enumerates the lifecycle states of a wave.
type WaveStatus string

const (
	WavePending   WaveStatus = "pending"
	WaveActive    WaveStatus = "active"
	WaveCompleted WaveStatus = "completed"
	WaveFailed    WaveStatus = "failed"
)

// waveTransitions is the allow-list of legal wave status transitions.
var waveTransitions = map[WaveStatus][]WaveStatus{
	WavePending:   {WaveActive},
	WaveActive:    {WaveCompleted, WaveFailed},
	WaveCompleted: {},
	WaveFailed:    {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s WaveStatus) CanTransition(next WaveStatus) bool {
	for _, allowed := range waveTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Wave is an ordered batch of tasks that must all reach a terminal state
// before the next wave starts.
type Wave struct {
	ProjectID   string
	Number      int // Monotonic, 1-based
	Status      WaveStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TaskCounts aggregates member task statuses for a wave.
type TaskCounts struct {
	Total       int
	Pending     int
	InProgress  int
	Completed   int
	Failed      int
	NeedsReview int
	Superseded  int
}

// AllTerminal reports whether every member task is completed or superseded.
func (c TaskCounts) AllTerminal() bool {
	return c.Total > 0 && c.Pending == 0 && c.InProgress == 0 && c.Failed == 0 && c.NeedsReview == 0
}

// Stalled reports whether the wave is blocked on human review: every task has
// stopped moving but at least one sits in needs_review.
func (c TaskCounts) Stalled() bool {
	return c.Pending == 0 && c.InProgress == 0 && c.Failed == 0 && c.NeedsReview > 0
}
