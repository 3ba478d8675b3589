package recovery

import (
	"context"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/notify"
)

// Pipeline runs analyze -> strategize -> execute for a task that exhausted
// its retry budget.
type Pipeline struct {
	analyzer   *Analyzer
	strategist *Strategist
	executor   *Executor
}

// NewPipeline wires the three recovery stages together.
func NewPipeline(gen genai.Generator, store Store, notifier notify.Notifier, logger Logger) *Pipeline {
	return &Pipeline{
		analyzer:   NewAnalyzer(gen, logger),
		strategist: NewStrategist(gen, logger),
		executor:   NewExecutor(store, notifier, logger),
	}
}

// Recover diagnoses the failure history, picks a strategy, and applies it.
// The returned strategy reflects what was applied; the only error source is
// the state mutation itself (diagnosis and strategy always degrade to safe
// fallbacks).
func (p *Pipeline) Recover(ctx context.Context, task *models.Task, attempts []models.FailureAttempt, iterationLimitHit bool) (models.RecoveryStrategy, error) {
	analysis := p.analyzer.Analyze(ctx, task, attempts)

	strategy := p.strategist.Decide(ctx, Input{
		Task:              task,
		Attempts:          attempts,
		IterationLimitHit: iterationLimitHit,
		Analysis:          analysis,
	})

	if err := p.executor.Apply(ctx, task, strategy, attempts); err != nil {
		return strategy, err
	}
	return strategy, nil
}
