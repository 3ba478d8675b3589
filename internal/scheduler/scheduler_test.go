package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/config"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/parser"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/recovery"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/retry"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
)

const testProject = "proj-1"

// fakeRunner fails each task a scripted number of times, then succeeds.
// A count of -1 means the task never succeeds.
type fakeRunner struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func newFakeRunner(failures map[string]int) *fakeRunner {
	return &fakeRunner{failures: failures, calls: make(map[string]int)}
}

func (r *fakeRunner) Run(_ context.Context, task *models.Task, _ int) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[task.Title]++
	n := r.failures[task.Title]
	if n < 0 || r.calls[task.Title] <= n {
		return &RunResult{ErrorText: "boom: " + task.Title, Stderr: "stack trace"}, nil
	}
	return &RunResult{Success: true, Output: "output for " + task.Title}, nil
}

// fakeGenerator returns scripted responses in order, or a fixed error.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// fakeGate approves or rejects every wave.
type fakeGate struct {
	approve bool
	reviews int
	files   []string
}

func (g *fakeGate) Review(_ context.Context, projectID string, waveNumber int, files []string, strict bool) (*models.ReviewReport, error) {
	g.reviews++
	g.files = files
	scores := models.CategoryScores{Quality: 90, Security: 95, Performance: 85, Maintainability: 80, Documentation: 75}
	if !g.approve {
		scores = models.CategoryScores{Quality: 30, Security: 40, Performance: 30, Maintainability: 30, Documentation: 30}
	}
	return &models.ReviewReport{
		ProjectID:  projectID,
		WaveNumber: waveNumber,
		Scores:     scores,
		Overall:    scores.Overall(),
		Approved:   g.approve,
		Strict:     strict,
	}, nil
}

type testEnv struct {
	sched  *Scheduler
	store  *store.Store
	runner *fakeRunner
	gate   *fakeGate
	gen    *fakeGenerator
	cfg    *config.Config
}

func newTestEnv(t *testing.T, failures map[string]int, gen *fakeGenerator) *testEnv {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.MaxConcurrency = 2

	runner := newFakeRunner(failures)
	gate := &fakeGate{approve: true}
	pipeline := recovery.NewPipeline(gen, st, nil, nil)
	policy := retry.NewPolicy(nil, nil)
	artifacts := NewArtifactStore(t.TempDir())

	return &testEnv{
		sched:  New(st, runner, pipeline, gate, policy, cfg, artifacts, nil),
		store:  st,
		runner: runner,
		gate:   gate,
		gen:    gen,
		cfg:    cfg,
	}
}

func seedWave(t *testing.T, env *testEnv, defs ...parser.TaskDef) {
	t.Helper()
	bp := &parser.Blueprint{
		ProjectName: "Test",
		Waves:       []parser.WaveDef{{Number: 1, Title: "Only", Tasks: defs}},
	}
	require.NoError(t, env.sched.Seed(context.Background(), testProject, bp))
}

func simpleTask(title string) parser.TaskDef {
	return parser.TaskDef{
		Title:         title,
		Description:   "do " + title,
		Agent:         "backend",
		Complexity:    models.ComplexitySimple,
		EstimatedSize: 100,
		Priority:      1,
	}
}

func TestRunWaveCompletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0, "beta": 1}, &fakeGenerator{err: errors.New("unused")})
	seedWave(t, env, simpleTask("alpha"), simpleTask("beta"))

	require.NoError(t, env.sched.RunWave(ctx, testProject, 1))

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, wave.Status)

	counts, err := env.store.WaveTaskCounts(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Completed)

	// beta needed a within-budget retry.
	require.Equal(t, 2, env.runner.calls["beta"])

	require.Equal(t, 1, env.gate.reviews)
	require.Len(t, env.gate.files, 2)

	report, err := env.store.LatestReviewReport(ctx, testProject, 1)
	require.NoError(t, err)
	require.True(t, report.Approved)
}

func TestRunWaveEscalationStallsWave(t *testing.T) {
	ctx := context.Background()
	// Recovery generator is down: the analyzer falls back to a
	// requires-human diagnosis and the task parks in needs_review.
	env := newTestEnv(t, map[string]int{"doomed": -1, "fine": 0}, &fakeGenerator{err: errors.New("down")})
	seedWave(t, env, simpleTask("doomed"), simpleTask("fine"))

	err := env.sched.RunWave(ctx, testProject, 1)
	require.ErrorIs(t, err, ErrWaveStalled)

	// Simple tier: exactly three attempts before recovery fires.
	require.Equal(t, 3, env.runner.calls["doomed"])

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveActive, wave.Status)

	counts, err := env.store.WaveTaskCounts(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, 1, counts.NeedsReview)
	require.Equal(t, 1, counts.Completed)

	open, err := env.store.ListCriticalFailures(ctx, models.FailureOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Len(t, open[0].Attempts, 3)

	// No review happens for a stalled wave.
	require.Zero(t, env.gate.reviews)
}

func TestRunWaveSplitRunsChildren(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{responses: []string{
		`{"root_cause":"too much in one task","category":"complexity","severity":"medium","can_auto_recover":true,"requires_human":false,"simplification_needed":true}`,
		`{"subtasks":[
			{"title":"Schema","description":"design the schema","estimated_size":40},
			{"title":"Handlers","description":"implement handlers","estimated_size":50}
		]}`,
	}}
	env := newTestEnv(t, map[string]int{"big": -1, "Schema": 0, "Handlers": 0}, gen)
	seedWave(t, env, simpleTask("big"))

	require.NoError(t, env.sched.RunWave(ctx, testProject, 1))

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, wave.Status)

	counts, err := env.store.WaveTaskCounts(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, 1, counts.Superseded)
	require.Equal(t, 2, counts.Completed)

	tasks, err := env.store.ListWaveTasks(ctx, testProject, 1)
	require.NoError(t, err)
	var childTitles []string
	for _, task := range tasks {
		if task.SourceTaskID != "" {
			childTitles = append(childTitles, task.Title)
		}
	}
	require.ElementsMatch(t, []string{"Schema", "Handlers"}, childTitles)
}

func TestRunWaveGateRejectionFailsWave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0}, &fakeGenerator{err: errors.New("unused")})
	env.gate.approve = false
	seedWave(t, env, simpleTask("alpha"))

	err := env.sched.RunWave(ctx, testProject, 1)
	require.ErrorIs(t, err, ErrGateRejected)

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveFailed, wave.Status)

	report, err := env.store.LatestReviewReport(ctx, testProject, 1)
	require.NoError(t, err)
	require.False(t, report.Approved)
}

func TestManualApprovalFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0}, &fakeGenerator{err: errors.New("unused")})
	env.cfg.Approval = config.ApprovalManual
	seedWave(t, env, simpleTask("alpha"))

	err := env.sched.RunWave(ctx, testProject, 1)
	require.ErrorIs(t, err, ErrAwaitingApproval)

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveActive, wave.Status)

	result, err := env.sched.ApproveWave(ctx, testProject, 1, ApprovalRequest{Approve: true, MergeArtifact: true})
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, result.Wave.Status)
	require.Equal(t, 1, result.Counts.Completed)
}

func TestApproveWaveRejectsNonTerminalTasks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, &fakeGenerator{err: errors.New("unused")})
	seedWave(t, env, simpleTask("alpha"))

	// Activate the wave but never run the task.
	require.NoError(t, env.store.UpdateWaveStatus(ctx, testProject, 1, models.WavePending, models.WaveActive))

	_, err := env.sched.ApproveWave(ctx, testProject, 1, ApprovalRequest{Approve: true})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "non-terminal"))

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveActive, wave.Status)
}

func TestApproveWaveRejectionFailsWave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0}, &fakeGenerator{err: errors.New("unused")})
	env.cfg.Approval = config.ApprovalManual
	seedWave(t, env, simpleTask("alpha"))

	require.ErrorIs(t, env.sched.RunWave(ctx, testProject, 1), ErrAwaitingApproval)

	result, err := env.sched.ApproveWave(ctx, testProject, 1, ApprovalRequest{Approve: false})
	require.NoError(t, err)
	require.Equal(t, models.WaveFailed, result.Wave.Status)
}

// interruptAfterTasks leaves an active wave with every task completed and
// materialized but no review on record, as a run killed between task
// execution and the gate would.
func interruptAfterTasks(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.store.UpdateWaveStatus(ctx, testProject, 1, models.WavePending, models.WaveActive))
	tasks, err := env.store.ListWaveTasks(ctx, testProject, 1)
	require.NoError(t, err)
	for _, task := range tasks {
		require.NoError(t, env.store.StartTask(ctx, task.ID))
		require.NoError(t, env.store.CompleteTask(ctx, task.ID, "output for "+task.Title))
		done, err := env.store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		_, err = env.sched.artifacts.WriteTaskOutput(done)
		require.NoError(t, err)
	}
}

func TestApproveWaveReviewsUnreviewedWave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, &fakeGenerator{err: errors.New("unused")})
	seedWave(t, env, simpleTask("alpha"))
	interruptAfterTasks(t, env)

	result, err := env.sched.ApproveWave(ctx, testProject, 1, ApprovalRequest{Approve: true})
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, result.Wave.Status)

	// Approval ran the gate it found missing.
	require.Equal(t, 1, env.gate.reviews)
	report, err := env.store.LatestReviewReport(ctx, testProject, 1)
	require.NoError(t, err)
	require.True(t, report.Approved)
}

func TestApproveWaveRejectedByLateReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, &fakeGenerator{err: errors.New("unused")})
	env.gate.approve = false
	seedWave(t, env, simpleTask("alpha"))
	interruptAfterTasks(t, env)

	_, err := env.sched.ApproveWave(ctx, testProject, 1, ApprovalRequest{Approve: true})
	require.ErrorIs(t, err, ErrGateRejected)

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveFailed, wave.Status)
}

func TestRunExecutesWavesInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0, "beta": 0}, &fakeGenerator{err: errors.New("unused")})

	bp := &parser.Blueprint{
		ProjectName: "Test",
		Waves: []parser.WaveDef{
			{Number: 1, Title: "First", Tasks: []parser.TaskDef{simpleTask("alpha")}},
			{Number: 2, Title: "Second", Tasks: []parser.TaskDef{simpleTask("beta")}},
		},
	}
	require.NoError(t, env.sched.Seed(ctx, testProject, bp))
	require.NoError(t, env.sched.Run(ctx, testProject))

	for _, number := range []int{1, 2} {
		wave, err := env.store.GetWave(ctx, testProject, number)
		require.NoError(t, err)
		require.Equal(t, models.WaveCompleted, wave.Status, "wave %d", number)
	}
	require.Equal(t, 2, env.gate.reviews)
}

func TestStalledWaveResumesAfterResolution(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"doomed": -1}, &fakeGenerator{err: errors.New("down")})
	seedWave(t, env, simpleTask("doomed"))

	require.ErrorIs(t, env.sched.RunWave(ctx, testProject, 1), ErrWaveStalled)

	// A human resolves the failure and requeues the task; this time it runs
	// clean.
	open, err := env.store.ListCriticalFailures(ctx, models.FailureOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.NoError(t, env.store.ResolveCriticalFailure(ctx, open[0].ID, models.FailureResolved, "fixed upstream"))
	require.NoError(t, env.store.ResetTaskForRetry(ctx, open[0].TaskID, models.TaskNeedsReview, ""))
	env.runner.mu.Lock()
	env.runner.failures["doomed"] = env.runner.calls["doomed"]
	env.runner.mu.Unlock()

	require.NoError(t, env.sched.RunWave(ctx, testProject, 1))

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, wave.Status)
}

func TestRunWaveResumesTaskLeftFailed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[string]int{"alpha": 0}, &fakeGenerator{err: errors.New("unused")})
	seedWave(t, env, simpleTask("alpha"))

	// An interrupted run can leave a task at rest in failed, after the
	// failure was recorded but before the requeue-or-recover step.
	tasks, err := env.store.ListWaveTasks(ctx, testProject, 1)
	require.NoError(t, err)
	require.NoError(t, env.store.StartTask(ctx, tasks[0].ID))
	require.NoError(t, env.store.FailTask(ctx, tasks[0].ID, "connection reset", 1))

	require.NoError(t, env.sched.RunWave(ctx, testProject, 1))

	task, err := env.store.GetTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskCompleted, task.Status)
	require.Equal(t, 1, env.runner.calls["alpha"])

	wave, err := env.store.GetWave(ctx, testProject, 1)
	require.NoError(t, err)
	require.Equal(t, models.WaveCompleted, wave.Status)
}
