package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// Proportional sizes for the deterministic split fallback.
const (
	fallbackSetupShare = 0.30
	fallbackCoreShare  = 0.50
	fallbackTestShare  = 0.20
)

// Input carries everything the strategist needs to decide.
type Input struct {
	Task              *models.Task
	Attempts          []models.FailureAttempt
	IterationLimitHit bool
	Analysis          *models.ErrorAnalysis
}

// Strategist maps a diagnosis to a recovery action and produces the
// concrete mutation the executor will apply.
type Strategist struct {
	gen    genai.Generator
	logger Logger
}

// NewStrategist creates a Strategist. logger may be nil.
func NewStrategist(gen genai.Generator, logger Logger) *Strategist {
	return &Strategist{gen: gen, logger: logger}
}

// Decide applies the decision table top-down, first match wins. Anything
// ambiguous or severe escalates to a human rather than looping silently.
func (s *Strategist) Decide(ctx context.Context, in Input) models.RecoveryStrategy {
	analysis := in.Analysis

	switch {
	case analysis.Severity == models.SeverityCritical || analysis.RequiresHuman:
		return models.RecoveryStrategy{
			Action:   models.ActionHumanReview,
			Reason:   fmt.Sprintf("severity %s with human intervention required: %s", analysis.Severity, analysis.RootCause),
			Severity: analysis.Severity,
		}

	case analysis.SimplificationNeeded || analysis.Category == models.CategoryComplexity:
		subTasks := s.decompose(ctx, in)
		return models.RecoveryStrategy{
			Action:   models.ActionSplit,
			Reason:   "task scope exceeds single-attempt capacity, splitting into sub-tasks",
			Severity: analysis.Severity,
			SubTasks: subTasks,
		}

	case analysis.Category == models.CategoryDependency && analysis.CanAutoRecover:
		return models.RecoveryStrategy{
			Action:   models.ActionRetry,
			Reason:   "dependency issue expected to resolve on a fresh attempt",
			Severity: analysis.Severity,
		}

	case (analysis.Category == models.CategorySyntax || analysis.Category == models.CategoryLogic) && analysis.CanAutoRecover:
		return models.RecoveryStrategy{
			Action:           models.ActionSimplify,
			Reason:           fmt.Sprintf("%s errors are recoverable with a reduced-scope prompt", analysis.Category),
			Severity:         analysis.Severity,
			SimplifiedPrompt: s.simplify(ctx, in),
		}

	default:
		return models.RecoveryStrategy{
			Action:   models.ActionHumanReview,
			Reason:   fmt.Sprintf("no automated strategy for category %s, escalating", analysis.Category),
			Severity: analysis.Severity,
		}
	}
}

// subTaskEnvelope is the JSON shape requested from the generator.
type subTaskEnvelope struct {
	SubTasks []models.SubTaskProposal `json:"subtasks" validate:"required,min=2,max=4,dive"`
}

// decompose asks the generator for 2-4 sub-tasks; on any failure it falls
// back to a deterministic Setup/Core/Testing split sized proportionally to
// the original estimate so the split action always produces usable work.
func (s *Strategist) decompose(ctx context.Context, in Input) []models.SubTaskProposal {
	prompt := buildDecomposePrompt(in.Task, in.Analysis)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.warnf("decomposition generation failed for task %s: %v", in.Task.ID, err)
		return FallbackSplit(in.Task)
	}

	var envelope subTaskEnvelope
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), &envelope); err != nil {
		s.warnf("decomposition parse failed for task %s: %v", in.Task.ID, err)
		return FallbackSplit(in.Task)
	}
	if err := models.ValidateStruct(envelope); err != nil {
		s.warnf("decomposition validation failed for task %s: %v", in.Task.ID, err)
		return FallbackSplit(in.Task)
	}

	// Proposals may not inflate the original scope beyond rounding slack.
	total := 0
	for _, p := range envelope.SubTasks {
		total += p.EstimatedSize
	}
	if float64(total) > float64(in.Task.EstimatedSize)*1.1 {
		s.warnf("decomposition for task %s oversized (%d units for %d), using fallback split",
			in.Task.ID, total, in.Task.EstimatedSize)
		return FallbackSplit(in.Task)
	}

	return envelope.SubTasks
}

// FallbackSplit is the deterministic decomposition: Setup, Core
// Implementation, and Testing sub-tasks sized 30/50/20 percent of the
// original estimate.
func FallbackSplit(task *models.Task) []models.SubTaskProposal {
	size := task.EstimatedSize
	if size < 3 {
		size = 3
	}
	share := func(f float64) int {
		n := int(float64(size) * f)
		if n < 1 {
			n = 1
		}
		return n
	}
	return []models.SubTaskProposal{
		{
			Title:         fmt.Sprintf("Setup: %s", task.Title),
			Description:   fmt.Sprintf("Prepare scaffolding, interfaces, and wiring required by: %s", task.Description),
			EstimatedSize: share(fallbackSetupShare),
		},
		{
			Title:         fmt.Sprintf("Core Implementation: %s", task.Title),
			Description:   fmt.Sprintf("Implement the core behavior of: %s", task.Description),
			EstimatedSize: share(fallbackCoreShare),
		},
		{
			Title:         fmt.Sprintf("Testing: %s", task.Title),
			Description:   fmt.Sprintf("Write and run tests covering: %s", task.Description),
			EstimatedSize: share(fallbackTestShare),
		},
	}
}

// simplify asks the generator to rewrite the task description with reduced
// scope, naming the failure pattern to avoid. On failure it applies a
// deterministic template narrowing.
func (s *Strategist) simplify(ctx context.Context, in Input) string {
	prompt := buildSimplifyPrompt(in.Task, in.Analysis)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(raw) == "" {
		s.warnf("simplification generation failed for task %s: %v", in.Task.ID, err)
		return FallbackSimplify(in.Task, in.Analysis)
	}
	return strings.TrimSpace(raw)
}

// FallbackSimplify performs the template-based narrowing used when the
// generator is unavailable.
func FallbackSimplify(task *models.Task, analysis *models.ErrorAnalysis) string {
	return fmt.Sprintf(
		"%s\n\nScope reduction: implement only the core functionality. Skip edge cases, advanced features, and optimizations.\nAvoid the previous failure pattern: %s",
		task.Description, analysis.RootCause)
}

func (s *Strategist) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}

func buildDecomposePrompt(task *models.Task, analysis *models.ErrorAnalysis) string {
	var sb strings.Builder
	sb.WriteString("A build task repeatedly failed because its scope is too large. Decompose it into 2-4 smaller sub-tasks.\n\n")
	fmt.Fprintf(&sb, "Task: %s\n", task.Title)
	fmt.Fprintf(&sb, "Description:\n%s\n", task.Description)
	fmt.Fprintf(&sb, "Estimated size: %d units\n", task.EstimatedSize)
	fmt.Fprintf(&sb, "Diagnosed root cause: %s\n\n", analysis.RootCause)
	fmt.Fprintf(&sb, "Sub-task sizes must sum to at most %d units.\n", task.EstimatedSize)
	sb.WriteString("Respond with ONLY a JSON object matching this schema:\n")
	sb.WriteString(models.SubTaskProposalsSchema())
	return sb.String()
}

func buildSimplifyPrompt(task *models.Task, analysis *models.ErrorAnalysis) string {
	var sb strings.Builder
	sb.WriteString("Rewrite this build task description with reduced scope so the next attempt succeeds.\n")
	sb.WriteString("Drop edge cases and advanced features; keep only the core requirement.\n\n")
	fmt.Fprintf(&sb, "Task: %s\n", task.Title)
	fmt.Fprintf(&sb, "Original description:\n%s\n\n", task.Description)
	fmt.Fprintf(&sb, "The rewrite must explicitly tell the agent to avoid this failure pattern: %s\n", analysis.RootCause)
	sb.WriteString("Respond with ONLY the rewritten description, no preamble.\n")
	return sb.String()
}
