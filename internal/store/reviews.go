package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// SaveReviewReport persists a quality-gate verdict for a wave.
func (s *Store) SaveReviewReport(ctx context.Context, report *models.ReviewReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	scoresJSON, err := json.Marshal(report.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	mustFixJSON, err := json.Marshal(report.MustFix)
	if err != nil {
		return fmt.Errorf("marshal must-fix issues: %w", err)
	}
	shouldFixJSON, err := json.Marshal(report.ShouldFix)
	if err != nil {
		return fmt.Errorf("marshal should-fix issues: %w", err)
	}
	optionalJSON, err := json.Marshal(report.Optional)
	if err != nil {
		return fmt.Errorf("marshal optional issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO review_reports
		(id, project_id, wave_number, overall, scores, must_fix, should_fix, optional, approved, strict)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.ProjectID, report.WaveNumber, report.Overall,
		string(scoresJSON), string(mustFixJSON), string(shouldFixJSON),
		string(optionalJSON), report.Approved, report.Strict)
	if err != nil {
		return fmt.Errorf("insert review report: %w", err)
	}
	return nil
}

// LatestReviewReport returns the most recent report for a wave, or
// ErrNotFound when the wave was never reviewed.
func (s *Store) LatestReviewReport(ctx context.Context, projectID string, waveNumber int) (*models.ReviewReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, wave_number, overall,
		scores, must_fix, should_fix, optional, approved, strict, created_at
		FROM review_reports WHERE project_id = ? AND wave_number = ?
		ORDER BY created_at DESC LIMIT 1`, projectID, waveNumber)

	var r models.ReviewReport
	var scoresJSON, mustFixJSON, shouldFixJSON, optionalJSON string
	err := row.Scan(&r.ID, &r.ProjectID, &r.WaveNumber, &r.Overall,
		&scoresJSON, &mustFixJSON, &shouldFixJSON, &optionalJSON,
		&r.Approved, &r.Strict, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review report: %w", err)
	}

	for _, pair := range []struct {
		src string
		dst interface{}
	}{
		{scoresJSON, &r.Scores},
		{mustFixJSON, &r.MustFix},
		{shouldFixJSON, &r.ShouldFix},
		{optionalJSON, &r.Optional},
	} {
		if err := json.Unmarshal([]byte(pair.src), pair.dst); err != nil {
			return nil, fmt.Errorf("unmarshal review report field: %w", err)
		}
	}
	return &r, nil
}
