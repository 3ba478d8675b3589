package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// AppendFailureAttempt records one execution attempt. Attempts are
// append-only; re-inserting the same (task, iteration) pair is ignored so
// a replayed recovery pass cannot duplicate history.
func (s *Store) AppendFailureAttempt(ctx context.Context, attempt *models.FailureAttempt) error {
	filesJSON, err := json.Marshal(attempt.FilesTouched)
	if err != nil {
		return fmt.Errorf("marshal files touched: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO failure_attempts
		(task_id, iteration, error_text, stdout, stderr, files_touched)
		VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.TaskID, attempt.Iteration, attempt.ErrorText,
		attempt.Stdout, attempt.Stderr, string(filesJSON))
	if err != nil {
		return fmt.Errorf("insert failure attempt: %w", err)
	}
	return nil
}

// GetFailureAttempts returns a task's attempt history in iteration order.
func (s *Store) GetFailureAttempts(ctx context.Context, taskID string) ([]models.FailureAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, iteration, error_text, stdout, stderr, files_touched, created_at
		FROM failure_attempts WHERE task_id = ? ORDER BY iteration ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list failure attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.FailureAttempt
	for rows.Next() {
		var a models.FailureAttempt
		var filesJSON string
		if err := rows.Scan(&a.TaskID, &a.Iteration, &a.ErrorText, &a.Stdout, &a.Stderr, &filesJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failure attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &a.FilesTouched); err != nil {
			return nil, fmt.Errorf("unmarshal files touched: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CreateCriticalFailure persists an escalation record. At most one
// unresolved record may exist per task (enforced by a partial unique index);
// the returned bool reports whether a new record was created.
func (s *Store) CreateCriticalFailure(ctx context.Context, cf *models.CriticalFailure) (bool, error) {
	if cf.ID == "" {
		cf.ID = uuid.NewString()
	}
	if cf.Status == "" {
		cf.Status = models.FailureOpen
	}

	attemptsJSON, err := json.Marshal(cf.Attempts)
	if err != nil {
		return false, fmt.Errorf("marshal attempt history: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO critical_failures
		(id, task_id, severity, title, description, root_cause, attempts, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cf.ID, cf.TaskID, cf.Severity, cf.Title, cf.Description,
		cf.RootCause, string(attemptsJSON), cf.Status)
	if err != nil {
		return false, fmt.Errorf("insert critical failure: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkFailureNotified records that the owner was alerted.
func (s *Store) MarkFailureNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE critical_failures
		SET notified = 1, notified_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark failure notified: %w", err)
	}
	return requireOneRow(res)
}

// ListCriticalFailures returns escalation records, optionally filtered by status.
func (s *Store) ListCriticalFailures(ctx context.Context, status models.FailureStatus) ([]*models.CriticalFailure, error) {
	query := `SELECT id, task_id, severity, title, description, root_cause, attempts,
		status, notified, notified_at, resolution, created_at, updated_at
		FROM critical_failures`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list critical failures: %w", err)
	}
	defer rows.Close()

	var failures []*models.CriticalFailure
	for rows.Next() {
		cf, err := scanCriticalFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, cf)
	}
	return failures, rows.Err()
}

// GetCriticalFailure fetches one escalation record by id.
func (s *Store) GetCriticalFailure(ctx context.Context, id string) (*models.CriticalFailure, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, task_id, severity, title, description, root_cause, attempts,
		status, notified, notified_at, resolution, created_at, updated_at
		FROM critical_failures WHERE id = ?`, id)
	cf, err := scanCriticalFailure(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return cf, err
}

// ResolveCriticalFailure closes an open/in_review escalation with resolution
// notes. Guarded: already-closed records return ErrStatusConflict.
func (s *Store) ResolveCriticalFailure(ctx context.Context, id string, to models.FailureStatus, resolution string) error {
	if to != models.FailureResolved && to != models.FailureDismissed && to != models.FailureInReview {
		return fmt.Errorf("%w: failure status %s", models.ErrInvalidTransition, to)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE critical_failures
		SET status = ?, resolution = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)`,
		to, resolution, id, models.FailureOpen, models.FailureInReview)
	if err != nil {
		return fmt.Errorf("resolve critical failure: %w", err)
	}
	return requireOneRow(res)
}

func scanCriticalFailure(row rowScanner) (*models.CriticalFailure, error) {
	var cf models.CriticalFailure
	var attemptsJSON string
	var notified int
	var notifiedAt sql.NullTime
	err := row.Scan(&cf.ID, &cf.TaskID, &cf.Severity, &cf.Title, &cf.Description,
		&cf.RootCause, &attemptsJSON, &cf.Status, &notified, &notifiedAt,
		&cf.Resolution, &cf.CreatedAt, &cf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attemptsJSON), &cf.Attempts); err != nil {
		return nil, fmt.Errorf("unmarshal attempt history: %w", err)
	}
	cf.Notified = notified != 0
	if notifiedAt.Valid {
		v := notifiedAt.Time
		cf.NotifiedAt = &v
	}
	return &cf, nil
}
