// Package scheduler drives the wave lifecycle: it runs the tasks of each
// wave under a bounded worker pool, hands exhausted tasks to recovery, and
// asks the quality gate before a wave may complete.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/config"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/parser"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/retry"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
)

// maxWavePasses caps how many times one wave re-scans for runnable tasks.
// Recovery keeps minting pending work (resets, split children); a wave that
// cannot settle within this many passes is broken, not busy.
const maxWavePasses = 16

// Sentinel outcomes of a wave run.
var (
	// ErrWaveStalled: every task stopped moving but at least one sits in
	// needs_review. The wave stays active until a human resolves it.
	ErrWaveStalled = errors.New("wave stalled on human review")
	// ErrGateRejected: the quality gate refused the wave's artifacts.
	ErrGateRejected = errors.New("quality gate rejected wave")
	// ErrAwaitingApproval: the project requires a manual sign-off.
	ErrAwaitingApproval = errors.New("wave awaiting manual approval")
)

// RunResult is the outcome of one task attempt.
type RunResult struct {
	Success      bool
	Output       string
	ErrorText    string
	Stdout       string
	Stderr       string
	FilesTouched []string
}

// TaskRunner executes one attempt of a task. Implementations generate and
// apply the task's work; the scheduler owns every status transition.
type TaskRunner interface {
	Run(ctx context.Context, task *models.Task, iteration int) (*RunResult, error)
}

// Recoverer is the recovery pipeline surface the scheduler calls when a
// task exhausts its retry budget.
type Recoverer interface {
	Recover(ctx context.Context, task *models.Task, attempts []models.FailureAttempt, iterationLimitHit bool) (models.RecoveryStrategy, error)
}

// WaveReviewer is the quality gate surface.
type WaveReviewer interface {
	Review(ctx context.Context, projectID string, waveNumber int, files []string, strict bool) (*models.ReviewReport, error)
}

// Logger is the logging surface the scheduler needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// waveLogger is the optional lifecycle-logging surface.
type waveLogger interface {
	LogWaveStart(wave models.Wave, taskCount int)
	LogWaveComplete(wave models.Wave, duration time.Duration, counts models.TaskCounts)
}

// Scheduler coordinates waves, tasks, retries, recovery, and the gate.
type Scheduler struct {
	store     *store.Store
	runner    TaskRunner
	recovery  Recoverer
	gate      WaveReviewer
	policy    *retry.Policy
	cfg       *config.Config
	artifacts *ArtifactStore
	logger    Logger
}

// New creates a Scheduler. logger may be nil.
func New(st *store.Store, runner TaskRunner, rec Recoverer, gate WaveReviewer, policy *retry.Policy, cfg *config.Config, artifacts *ArtifactStore, logger Logger) *Scheduler {
	return &Scheduler{
		store:     st,
		runner:    runner,
		recovery:  rec,
		gate:      gate,
		policy:    policy,
		cfg:       cfg,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Seed creates the waves and tasks of a parsed blueprint. It is called once
// per project; re-seeding an existing project errors on the wave rows.
func (s *Scheduler) Seed(ctx context.Context, projectID string, bp *parser.Blueprint) error {
	for _, wave := range bp.Waves {
		if err := s.store.CreateWave(ctx, projectID, wave.Number); err != nil {
			return fmt.Errorf("create wave %d: %w", wave.Number, err)
		}
		for _, def := range wave.Tasks {
			task := &models.Task{
				ProjectID:     projectID,
				WaveNumber:    wave.Number,
				Agent:         def.Agent,
				Priority:      def.Priority,
				Title:         def.Title,
				Description:   def.Description,
				EstimatedSize: def.EstimatedSize,
				Complexity:    def.Complexity,
			}
			if err := s.store.CreateTask(ctx, task); err != nil {
				return fmt.Errorf("create task %q: %w", def.Title, err)
			}
		}
	}
	return nil
}

// Run executes the project's waves in order. Waves never overlap: a wave
// must complete before the next one starts, and a stalled or unapproved
// wave stops the run.
func (s *Scheduler) Run(ctx context.Context, projectID string) error {
	waves, err := s.store.ListWaves(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list waves: %w", err)
	}
	for _, wave := range waves {
		if wave.Status == models.WaveCompleted {
			continue
		}
		if err := s.RunWave(ctx, projectID, wave.Number); err != nil {
			return err
		}
	}
	return nil
}

// RunWave drives one wave from pending (or a resumed active) to a terminal
// state. Returns ErrWaveStalled / ErrAwaitingApproval with the wave left
// active, or ErrGateRejected with the wave failed.
func (s *Scheduler) RunWave(ctx context.Context, projectID string, waveNumber int) error {
	wave, err := s.store.GetWave(ctx, projectID, waveNumber)
	if err != nil {
		return fmt.Errorf("get wave %d: %w", waveNumber, err)
	}

	switch wave.Status {
	case models.WaveCompleted:
		return nil
	case models.WaveFailed:
		return fmt.Errorf("wave %d already failed", waveNumber)
	case models.WavePending:
		if err := s.store.UpdateWaveStatus(ctx, projectID, waveNumber, models.WavePending, models.WaveActive); err != nil {
			return fmt.Errorf("activate wave %d: %w", waveNumber, err)
		}
	}

	start := time.Now()
	counts, err := s.store.WaveTaskCounts(ctx, projectID, waveNumber)
	if err != nil {
		return err
	}
	if wl, ok := s.logger.(waveLogger); ok && s.logger != nil {
		wl.LogWaveStart(*wave, counts.Total)
	}

	if err := s.runWaveTasks(ctx, projectID, waveNumber); err != nil {
		return err
	}

	counts, err = s.store.WaveTaskCounts(ctx, projectID, waveNumber)
	if err != nil {
		return err
	}
	if counts.Stalled() {
		s.warnf("wave %d stalled: %d task(s) need human review", waveNumber, counts.NeedsReview)
		return fmt.Errorf("wave %d: %w", waveNumber, ErrWaveStalled)
	}
	if !counts.AllTerminal() {
		return fmt.Errorf("wave %d did not settle: %+v", waveNumber, counts)
	}

	if err := s.reviewWave(ctx, projectID, waveNumber); err != nil {
		return err
	}

	if s.cfg.Approval == config.ApprovalManual {
		s.infof("wave %d complete pending manual approval", waveNumber)
		return fmt.Errorf("wave %d: %w", waveNumber, ErrAwaitingApproval)
	}

	if err := s.store.UpdateWaveStatus(ctx, projectID, waveNumber, models.WaveActive, models.WaveCompleted); err != nil {
		return fmt.Errorf("complete wave %d: %w", waveNumber, err)
	}
	if wl, ok := s.logger.(waveLogger); ok && s.logger != nil {
		wl.LogWaveComplete(*wave, time.Since(start), counts)
	}
	return nil
}

// runWaveTasks re-scans for pending members until the wave settles. Each
// pass runs the runnable tasks concurrently under the semaphore; recovery
// may mint new pending work (resets, split children) for the next pass.
func (s *Scheduler) runWaveTasks(ctx context.Context, projectID string, waveNumber int) error {
	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrency))

	for pass := 0; pass < maxWavePasses; pass++ {
		tasks, err := s.store.ListWaveTasks(ctx, projectID, waveNumber)
		if err != nil {
			return fmt.Errorf("list wave %d tasks: %w", waveNumber, err)
		}
		var runnable []*models.Task
		for _, task := range tasks {
			switch task.Status {
			case models.TaskPending:
				runnable = append(runnable, task)
			case models.TaskFailed:
				// A task at rest in failed was interrupted between its
				// failure record and the requeue-or-recover step; put it
				// back in play so that step happens.
				if err := s.store.UpdateTaskStatus(ctx, task.ID, models.TaskFailed, models.TaskPending); err != nil {
					return fmt.Errorf("requeue interrupted task %s: %w", task.ID, err)
				}
				s.infof("task %s resumed from an interrupted attempt", task.ID)
				runnable = append(runnable, task)
			}
		}
		if len(runnable) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, task := range runnable {
			task := task
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return s.runTask(gctx, task)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return fmt.Errorf("wave %d still has runnable tasks after %d passes", waveNumber, maxWavePasses)
}

// runTask drives one task's retry loop to its end: completion, a recovery
// decision, or an error. Within-budget retries stay inside this call; a
// recovery that resets the task hands it to the next wave pass.
func (s *Scheduler) runTask(ctx context.Context, task *models.Task) error {
	cfg := s.policy.ConfigFor(task.Complexity, task.EstimatedSize, s.cfg.Model)
	start := time.Now()
	iteration := task.RetryCount

	for {
		iteration++

		if err := s.store.StartTask(ctx, task.ID); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				s.debugf("task %s no longer pending, skipping", task.ID)
				return nil
			}
			return fmt.Errorf("start task %s: %w", task.ID, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
		result, runErr := s.runner.Run(attemptCtx, task, iteration)
		cancel()

		if runErr == nil && result != nil && result.Success {
			if err := s.store.CompleteTask(ctx, task.ID, result.Output); err != nil {
				return fmt.Errorf("complete task %s: %w", task.ID, err)
			}
			s.materialize(ctx, task.ID)
			s.debugf("task %s completed on iteration %d", task.ID, iteration)
			return nil
		}

		attempt := buildAttempt(task.ID, iteration, result, runErr)
		if err := s.store.AppendFailureAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("record attempt for task %s: %w", task.ID, err)
		}
		if err := s.store.FailTask(ctx, task.ID, attempt.ErrorText, iteration); err != nil {
			return fmt.Errorf("fail task %s: %w", task.ID, err)
		}

		decision := retry.ShouldRetry(iteration, time.Since(start), cfg)
		if decision.Retry {
			s.debugf("task %s retrying, iteration %d", task.ID, decision.NextIteration)
			if err := s.store.UpdateTaskStatus(ctx, task.ID, models.TaskFailed, models.TaskPending); err != nil {
				return fmt.Errorf("requeue task %s: %w", task.ID, err)
			}
			refreshed, err := s.store.GetTask(ctx, task.ID)
			if err != nil {
				return err
			}
			task = refreshed
			continue
		}

		s.infof("task %s out of budget (%s), starting recovery", task.ID, decision.Reason)
		attempts, err := s.store.GetFailureAttempts(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("load attempts for task %s: %w", task.ID, err)
		}
		failed, err := s.store.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		strategy, err := s.recovery.Recover(ctx, failed, attempts, iteration >= cfg.MaxIterations)
		if err != nil {
			return fmt.Errorf("recover task %s: %w", task.ID, err)
		}
		s.infof("task %s recovery: %s (%s)", task.ID, strategy.Action, strategy.Reason)
		return nil
	}
}

// reviewWave materializes the wave's artifacts, runs the gate, persists the
// report, and fails the wave on rejection.
func (s *Scheduler) reviewWave(ctx context.Context, projectID string, waveNumber int) error {
	files, err := s.artifacts.WaveFiles(waveNumber)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("wave %d produced no artifacts to review", waveNumber)
	}

	report, err := s.gate.Review(ctx, projectID, waveNumber, files, s.cfg.StrictGate)
	if err != nil {
		return fmt.Errorf("review wave %d: %w", waveNumber, err)
	}
	if err := s.store.SaveReviewReport(ctx, report); err != nil {
		return fmt.Errorf("save review for wave %d: %w", waveNumber, err)
	}

	if !report.Approved {
		if err := s.store.UpdateWaveStatus(ctx, projectID, waveNumber, models.WaveActive, models.WaveFailed); err != nil {
			return fmt.Errorf("fail wave %d: %w", waveNumber, err)
		}
		return fmt.Errorf("wave %d (overall %d, %d must-fix): %w",
			waveNumber, report.Overall, len(report.MustFix), ErrGateRejected)
	}
	return nil
}

// materialize writes a completed task's output into the artifact store.
// Failure to materialize degrades the later review, not the task itself.
func (s *Scheduler) materialize(ctx context.Context, taskID string) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		s.warnf("materialize: reload task %s: %v", taskID, err)
		return
	}
	if _, err := s.artifacts.WriteTaskOutput(task); err != nil {
		s.warnf("materialize task %s: %v", taskID, err)
	}
}

func buildAttempt(taskID string, iteration int, result *RunResult, runErr error) *models.FailureAttempt {
	attempt := &models.FailureAttempt{
		TaskID:    taskID,
		Iteration: iteration,
	}
	if result != nil {
		attempt.ErrorText = result.ErrorText
		attempt.Stdout = result.Stdout
		attempt.Stderr = result.Stderr
		attempt.FilesTouched = result.FilesTouched
	}
	if runErr != nil {
		attempt.ErrorText = runErr.Error()
	}
	if attempt.ErrorText == "" {
		attempt.ErrorText = "attempt failed without diagnostics"
	}
	return attempt
}

func (s *Scheduler) debugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

func (s *Scheduler) infof(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(format, args...)
	}
}

func (s *Scheduler) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}
