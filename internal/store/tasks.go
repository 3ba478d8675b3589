package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

const taskColumns = `id, project_id, wave_number, agent, status, priority, retry_count,
	title, description, estimated_size, complexity, output, error_text,
	auxiliary_input, source_task_id, created_at, updated_at, started_at, completed_at`

// CreateTask inserts a new task. The ID is generated when empty.
func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks
		(id, project_id, wave_number, agent, status, priority, retry_count,
		 title, description, estimated_size, complexity, output, error_text,
		 auxiliary_input, source_task_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.WaveNumber, task.Agent, task.Status,
		task.Priority, task.RetryCount, task.Title, task.Description,
		task.EstimatedSize, task.Complexity, task.Output, task.ErrorText,
		task.AuxiliaryInput, task.SourceTaskID)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// ListWaveTasks returns all tasks belonging to one wave, ordered by priority
// then creation time.
func (s *Store) ListWaveTasks(ctx context.Context, projectID string, waveNumber int) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE project_id = ? AND wave_number = ?
		ORDER BY priority ASC, created_at ASC`, projectID, waveNumber)
	if err != nil {
		return nil, fmt.Errorf("list wave tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListSubTasks returns the split children referencing sourceTaskID.
func (s *Store) ListSubTasks(ctx context.Context, sourceTaskID string) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE source_task_id = ? ORDER BY created_at ASC`, sourceTaskID)
	if err != nil {
		return nil, fmt.Errorf("list sub-tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus performs a status-guarded transition. The transition must
// be in the model allow-list and the row must still carry the expected
// current status, otherwise ErrInvalidTransition / ErrStatusConflict.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, from, to models.TaskStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireOneRow(res)
}

// StartTask moves a pending task to in_progress and stamps started_at.
func (s *Store) StartTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, started_at = COALESCE(started_at, CURRENT_TIMESTAMP), updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, models.TaskInProgress, id, models.TaskPending)
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	return requireOneRow(res)
}

// CompleteTask moves an in_progress task to completed with its output.
// A task cannot complete without output.
func (s *Store) CompleteTask(ctx context.Context, id, output string) error {
	if output == "" {
		return fmt.Errorf("cannot complete task %s with empty output", id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, output = ?, error_text = '', completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, models.TaskCompleted, output, id, models.TaskInProgress)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return requireOneRow(res)
}

// FailTask records a failed attempt outcome: status failed, error text, and
// the updated retry count.
func (s *Store) FailTask(ctx context.Context, id, errorText string, retryCount int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, error_text = ?, retry_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, models.TaskFailed, errorText, retryCount, id, models.TaskInProgress)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return requireOneRow(res)
}

// ResetTaskForRetry returns a failed task to pending with a clean retry
// cycle: retry count zeroed, error text cleared, optional simplified prompt
// attached as auxiliary input.
func (s *Store) ResetTaskForRetry(ctx context.Context, id string, from models.TaskStatus, auxiliaryInput string) error {
	if !from.CanTransition(models.TaskPending) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, models.TaskPending)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, retry_count = 0, error_text = '', auxiliary_input = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, models.TaskPending, auxiliaryInput, id, from)
	if err != nil {
		return fmt.Errorf("reset task for retry: %w", err)
	}
	return requireOneRow(res)
}

// MarkTaskNeedsReview moves a task to needs_review with diagnostic text.
func (s *Store) MarkTaskNeedsReview(ctx context.Context, id string, from models.TaskStatus, diagnostic string) error {
	if !from.CanTransition(models.TaskNeedsReview) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, models.TaskNeedsReview)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks
		SET status = ?, error_text = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, models.TaskNeedsReview, diagnostic, id, from)
	if err != nil {
		return fmt.Errorf("mark task needs_review: %w", err)
	}
	return requireOneRow(res)
}

// SupersedeTask replaces a task with split children in one transaction.
// Child IDs are derived deterministically from the source task id, and the
// whole operation is a no-op when the source is already superseded, so
// re-running a recovery decision cannot duplicate children.
func (s *Store) SupersedeTask(ctx context.Context, source *models.Task, proposals []models.SubTaskProposal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current models.TaskStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, source.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read source task: %w", err)
		}
		if current == models.TaskSuperseded {
			return nil // Already applied.
		}
		if !current.CanTransition(models.TaskSuperseded) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current, models.TaskSuperseded)
		}

		for i, p := range proposals {
			childID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/split/%d", source.ID, i))).String()
			_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tasks
				(id, project_id, wave_number, agent, status, priority,
				 title, description, estimated_size, complexity, source_task_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				childID, source.ProjectID, source.WaveNumber, source.Agent,
				models.TaskPending, source.Priority, p.Title, p.Description,
				p.EstimatedSize, source.Complexity, source.ID)
			if err != nil {
				return fmt.Errorf("insert sub-task %d: %w", i, err)
			}
		}

		res, err := tx.ExecContext(ctx, `UPDATE tasks
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?`, models.TaskSuperseded, source.ID, current)
		if err != nil {
			return fmt.Errorf("supersede source task: %w", err)
		}
		return requireOneRow(res)
	})
}

// WaveTaskCounts aggregates member task statuses for one wave.
func (s *Store) WaveTaskCounts(ctx context.Context, projectID string, waveNumber int) (models.TaskCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks
		WHERE project_id = ? AND wave_number = ? GROUP BY status`, projectID, waveNumber)
	if err != nil {
		return models.TaskCounts{}, fmt.Errorf("count wave tasks: %w", err)
	}
	defer rows.Close()

	var counts models.TaskCounts
	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.TaskCounts{}, fmt.Errorf("scan counts: %w", err)
		}
		counts.Total += n
		switch status {
		case models.TaskPending:
			counts.Pending = n
		case models.TaskInProgress:
			counts.InProgress = n
		case models.TaskCompleted:
			counts.Completed = n
		case models.TaskFailed:
			counts.Failed = n
		case models.TaskNeedsReview:
			counts.NeedsReview = n
		case models.TaskSuperseded:
			counts.Superseded = n
		}
	}
	return counts, rows.Err()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.ProjectID, &t.WaveNumber, &t.Agent, &t.Status,
		&t.Priority, &t.RetryCount, &t.Title, &t.Description, &t.EstimatedSize,
		&t.Complexity, &t.Output, &t.ErrorText, &t.AuxiliaryInput,
		&t.SourceTaskID, &t.CreatedAt, &t.UpdatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return &t, nil
}
