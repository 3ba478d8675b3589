package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
)

// ApprovalRequest is a human sign-off decision for an active wave.
type ApprovalRequest struct {
	Approve            bool `json:"approve"`
	MergeArtifact      bool `json:"mergeArtifact"`
	ContinueToNextWave bool `json:"continueToNextWave"`
}

// ApprovalResult reports the wave and task state after the decision.
type ApprovalResult struct {
	Wave      *models.Wave      `json:"wave"`
	Counts    models.TaskCounts `json:"counts"`
	NextWave  int               `json:"nextWave,omitempty"`
	Continued bool              `json:"continued"`
}

// ApproveWave applies a human approval decision to an active wave. Approval
// requires every member task terminal; rejection fails the wave. With
// ContinueToNextWave set, the following wave is run synchronously.
func (s *Scheduler) ApproveWave(ctx context.Context, projectID string, waveNumber int, req ApprovalRequest) (*ApprovalResult, error) {
	wave, err := s.store.GetWave(ctx, projectID, waveNumber)
	if err != nil {
		return nil, fmt.Errorf("get wave %d: %w", waveNumber, err)
	}
	if wave.Status != models.WaveActive {
		return nil, fmt.Errorf("wave %d is %s, only active waves take approval decisions", waveNumber, wave.Status)
	}

	counts, err := s.store.WaveTaskCounts(ctx, projectID, waveNumber)
	if err != nil {
		return nil, err
	}

	if !req.Approve {
		if err := s.store.UpdateWaveStatus(ctx, projectID, waveNumber, models.WaveActive, models.WaveFailed); err != nil {
			return nil, fmt.Errorf("fail wave %d: %w", waveNumber, err)
		}
		s.infof("wave %d rejected by human decision", waveNumber)
		return s.approvalResult(ctx, projectID, waveNumber, 0, false)
	}

	if !counts.AllTerminal() {
		return nil, fmt.Errorf("wave %d has non-terminal tasks (%d pending, %d in progress, %d failed, %d need review)",
			waveNumber, counts.Pending, counts.InProgress, counts.Failed, counts.NeedsReview)
	}

	// A wave completes only on a gate-approved review. The run flow reviews
	// before asking for approval, but a run interrupted between task
	// execution and review leaves an active wave with no report.
	if err := s.ensureWaveReviewed(ctx, projectID, waveNumber); err != nil {
		return nil, err
	}

	if req.MergeArtifact {
		if err := s.artifacts.Merge(waveNumber); err != nil {
			return nil, fmt.Errorf("merge wave %d artifacts: %w", waveNumber, err)
		}
	}

	if err := s.store.UpdateWaveStatus(ctx, projectID, waveNumber, models.WaveActive, models.WaveCompleted); err != nil {
		return nil, fmt.Errorf("complete wave %d: %w", waveNumber, err)
	}
	s.infof("wave %d approved", waveNumber)

	nextWave := 0
	continued := false
	if req.ContinueToNextWave {
		next, err := s.nextPendingWave(ctx, projectID, waveNumber)
		if err != nil {
			return nil, err
		}
		if next > 0 {
			nextWave = next
			continued = true
			if err := s.RunWave(ctx, projectID, next); err != nil {
				// The next wave's own stall/approval outcome rides along in
				// the result rather than voiding the approval that succeeded.
				s.warnf("continuing to wave %d: %v", next, err)
			}
		}
	}

	return s.approvalResult(ctx, projectID, waveNumber, nextWave, continued)
}

// ensureWaveReviewed verifies the gate approved this wave, running the
// review now if no report was ever saved.
func (s *Scheduler) ensureWaveReviewed(ctx context.Context, projectID string, waveNumber int) error {
	report, err := s.store.LatestReviewReport(ctx, projectID, waveNumber)
	if errors.Is(err, store.ErrNotFound) {
		s.infof("wave %d has no review on record, running the gate before approval", waveNumber)
		return s.reviewWave(ctx, projectID, waveNumber)
	}
	if err != nil {
		return fmt.Errorf("load review for wave %d: %w", waveNumber, err)
	}
	if !report.Approved {
		return fmt.Errorf("wave %d review was not approved (overall %d): %w",
			waveNumber, report.Overall, ErrGateRejected)
	}
	return nil
}

func (s *Scheduler) nextPendingWave(ctx context.Context, projectID string, after int) (int, error) {
	waves, err := s.store.ListWaves(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list waves: %w", err)
	}
	for _, wave := range waves {
		if wave.Number > after && wave.Status == models.WavePending {
			return wave.Number, nil
		}
	}
	return 0, nil
}

func (s *Scheduler) approvalResult(ctx context.Context, projectID string, waveNumber, nextWave int, continued bool) (*ApprovalResult, error) {
	wave, err := s.store.GetWave(ctx, projectID, waveNumber)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.WaveTaskCounts(ctx, projectID, waveNumber)
	if err != nil {
		return nil, err
	}
	return &ApprovalResult{Wave: wave, Counts: counts, NextWave: nextWave, Continued: continued}, nil
}
