// Package retry derives per-task retry budgets and decides when a failing
// task should stop retrying and enter error recovery.
package retry

import (
	"time"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// Next action recommendations returned by ShouldRetry.
const (
	ActionRetry         = "retry"
	ActionErrorRecovery = "error_recovery"
)

// AbsoluteMaxIterations is the hard ceiling no budget may exceed.
const AbsoluteMaxIterations = 5

// sizeBumpThreshold is the estimated size above which a simple task earns
// one extra iteration.
const sizeBumpThreshold = 200

// Config is a policy snapshot computed per task. It is derived state and
// never persisted.
type Config struct {
	MaxIterations       int
	MaxCostUSD          float64
	CostPerIterationUSD float64
	MaxDuration         time.Duration
}

// ModelPricing defines cost per million tokens for a generation model,
// plus the average tokens one iteration consumes.
type ModelPricing struct {
	InputPer1M            float64
	OutputPer1M           float64
	AvgInputPerIteration  int64
	AvgOutputPerIteration int64
}

// CostPerIteration estimates the USD cost of a single iteration.
func (p ModelPricing) CostPerIteration() float64 {
	return float64(p.AvgInputPerIteration)/1e6*p.InputPer1M +
		float64(p.AvgOutputPerIteration)/1e6*p.OutputPer1M
}

// DefaultModel is the pricing key used when the configured model is unknown.
const DefaultModel = "gpt-4o-mini"

// DefaultCostModel returns the pricing table for supported generation models.
// Prices are USD per million tokens.
func DefaultCostModel() map[string]ModelPricing {
	return map[string]ModelPricing{
		"gpt-4o": {
			InputPer1M:            2.50,
			OutputPer1M:           10.00,
			AvgInputPerIteration:  6000,
			AvgOutputPerIteration: 2500,
		},
		"gpt-4o-mini": {
			InputPer1M:            0.15,
			OutputPer1M:           0.60,
			AvgInputPerIteration:  6000,
			AvgOutputPerIteration: 2500,
		},
		"gpt-4-turbo": {
			InputPer1M:            10.00,
			OutputPer1M:           30.00,
			AvgInputPerIteration:  6000,
			AvgOutputPerIteration: 2500,
		},
	}
}

// tierBudget is the base budget table keyed by complexity tier.
var tierBudgets = map[models.ComplexityTier]Config{
	models.ComplexitySimple: {
		MaxIterations: 3,
		MaxCostUSD:    1.50,
		MaxDuration:   10 * time.Minute,
	},
	models.ComplexityMedium: {
		MaxIterations: 4,
		MaxCostUSD:    4.00,
		MaxDuration:   30 * time.Minute,
	},
}

// warnLogger receives non-fatal policy warnings.
type warnLogger interface {
	Warnf(format string, args ...interface{})
}

// Policy computes retry budgets from a cost model. The zero-value-safe
// constructor form keeps call sites testable with a fixed table.
type Policy struct {
	costModel map[string]ModelPricing
	logger    warnLogger
}

// NewPolicy creates a Policy. costModel may be nil, in which case the
// default table is used. logger may be nil for silent operation.
func NewPolicy(costModel map[string]ModelPricing, logger warnLogger) *Policy {
	if costModel == nil {
		costModel = DefaultCostModel()
	}
	return &Policy{costModel: costModel, logger: logger}
}

// ConfigFor derives the retry budget for a task. Unknown complexity tiers are
// treated as medium; unknown model keys fall back to the default model's
// pricing with a warning. ConfigFor never fails.
func (p *Policy) ConfigFor(tier models.ComplexityTier, estimatedSize int, model string) Config {
	cfg, ok := tierBudgets[tier]
	if !ok {
		cfg = tierBudgets[models.ComplexityMedium]
	}

	// A large simple task earns one extra iteration, capped at the ceiling.
	if tier == models.ComplexitySimple && estimatedSize > sizeBumpThreshold {
		cfg.MaxIterations++
	}
	if cfg.MaxIterations > AbsoluteMaxIterations {
		cfg.MaxIterations = AbsoluteMaxIterations
	}

	pricing, ok := p.costModel[model]
	if !ok {
		if p.logger != nil {
			p.logger.Warnf("unknown cost model %q, falling back to %s pricing", model, DefaultModel)
		}
		pricing = p.costModel[DefaultModel]
	}
	cfg.CostPerIterationUSD = pricing.CostPerIteration()

	return cfg
}

// Decision is the outcome of a retry-or-stop evaluation.
type Decision struct {
	Retry         bool
	NextIteration int    // Valid when Retry is true
	NextAction    string // ActionRetry or ActionErrorRecovery
	Reason        string
}

// ShouldRetry evaluates stop conditions in priority order: iteration ceiling,
// accumulated cost, elapsed duration. Iteration count goes first because it
// is the cheapest and most deterministic signal. The first true condition
// stops retries and recommends error recovery.
func ShouldRetry(iteration int, elapsed time.Duration, cfg Config) Decision {
	if iteration >= cfg.MaxIterations {
		return Decision{
			NextAction: ActionErrorRecovery,
			Reason:     "iteration ceiling reached",
		}
	}

	if cfg.MaxCostUSD > 0 && float64(iteration)*cfg.CostPerIterationUSD >= cfg.MaxCostUSD {
		return Decision{
			NextAction: ActionErrorRecovery,
			Reason:     "cost budget exhausted",
		}
	}

	if cfg.MaxDuration > 0 && elapsed >= cfg.MaxDuration {
		return Decision{
			NextAction: ActionErrorRecovery,
			Reason:     "duration budget exhausted",
		}
	}

	return Decision{
		Retry:         true,
		NextIteration: iteration + 1,
		NextAction:    ActionRetry,
	}
}
