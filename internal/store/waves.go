package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// CreateWave inserts a new wave in pending status.
func (s *Store) CreateWave(ctx context.Context, projectID string, number int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO waves (project_id, number, status)
		VALUES (?, ?, ?)`, projectID, number, models.WavePending)
	if err != nil {
		return fmt.Errorf("insert wave: %w", err)
	}
	return nil
}

// GetWave fetches a wave by project and number.
func (s *Store) GetWave(ctx context.Context, projectID string, number int) (*models.Wave, error) {
	row := s.db.QueryRowContext(ctx, `SELECT project_id, number, status, started_at, completed_at
		FROM waves WHERE project_id = ? AND number = ?`, projectID, number)

	var w models.Wave
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&w.ProjectID, &w.Number, &w.Status, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wave %d: %w", number, err)
	}
	if startedAt.Valid {
		v := startedAt.Time
		w.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		w.CompletedAt = &v
	}
	return &w, nil
}

// ListWaves returns all waves for a project ordered by number.
func (s *Store) ListWaves(ctx context.Context, projectID string) ([]*models.Wave, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, number, status, started_at, completed_at
		FROM waves WHERE project_id = ? ORDER BY number ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list waves: %w", err)
	}
	defer rows.Close()

	var waves []*models.Wave
	for rows.Next() {
		var w models.Wave
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&w.ProjectID, &w.Number, &w.Status, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan wave: %w", err)
		}
		if startedAt.Valid {
			v := startedAt.Time
			w.StartedAt = &v
		}
		if completedAt.Valid {
			v := completedAt.Time
			w.CompletedAt = &v
		}
		waves = append(waves, &w)
	}
	return waves, rows.Err()
}

// UpdateWaveStatus performs a status-guarded wave transition, stamping
// start/completion timestamps as appropriate.
func (s *Store) UpdateWaveStatus(ctx context.Context, projectID string, number int, from, to models.WaveStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: wave %s -> %s", models.ErrInvalidTransition, from, to)
	}

	query := `UPDATE waves SET status = ? WHERE project_id = ? AND number = ? AND status = ?`
	switch to {
	case models.WaveActive:
		query = `UPDATE waves SET status = ?, started_at = COALESCE(started_at, CURRENT_TIMESTAMP)
			WHERE project_id = ? AND number = ? AND status = ?`
	case models.WaveCompleted, models.WaveFailed:
		query = `UPDATE waves SET status = ?, completed_at = CURRENT_TIMESTAMP
			WHERE project_id = ? AND number = ? AND status = ?`
	}

	res, err := s.db.ExecContext(ctx, query, to, projectID, number, from)
	if err != nil {
		return fmt.Errorf("update wave status: %w", err)
	}
	return requireOneRow(res)
}
