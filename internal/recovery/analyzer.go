// Package recovery turns a task's failure history into a diagnosis, chooses
// a recovery action, and applies it. Every AI-assisted step degrades to a
// deterministic fallback so the pipeline always makes progress.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

// streamTruncateLen bounds how much of each attempt's stdout/stderr goes
// into the diagnosis prompt.
const streamTruncateLen = 500

// Logger is the minimal logging surface the recovery pipeline needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Analyzer classifies a failure history into a structured diagnosis.
type Analyzer struct {
	gen    genai.Generator
	logger Logger
}

// NewAnalyzer creates an Analyzer. logger may be nil.
func NewAnalyzer(gen genai.Generator, logger Logger) *Analyzer {
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze produces an ErrorAnalysis for the task's attempt history. It never
// returns an error: when generation or parsing fails, the fixed fallback
// diagnosis (unknown/high/requires human) is returned so the strategist
// escalates instead of looping.
func (a *Analyzer) Analyze(ctx context.Context, task *models.Task, attempts []models.FailureAttempt) *models.ErrorAnalysis {
	prompt := buildAnalysisPrompt(task, attempts)

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.warnf("failure analysis generation failed for task %s: %v", task.ID, err)
		return models.FallbackAnalysis(lastErrorText(attempts))
	}

	var analysis models.ErrorAnalysis
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), &analysis); err != nil {
		a.warnf("failure analysis parse failed for task %s: %v", task.ID, err)
		return models.FallbackAnalysis(lastErrorText(attempts))
	}
	if err := models.ValidateStruct(analysis); err != nil {
		a.warnf("failure analysis validation failed for task %s: %v", task.ID, err)
		return models.FallbackAnalysis(lastErrorText(attempts))
	}

	if a.logger != nil {
		a.logger.Debugf("task %s diagnosed: category=%s severity=%s autoRecover=%v",
			task.ID, analysis.Category, analysis.Severity, analysis.CanAutoRecover)
	}
	return &analysis
}

func (a *Analyzer) warnf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Warnf(format, args...)
	}
}

// buildAnalysisPrompt embeds the task definition and a truncated view of
// each attempt into a strict-JSON diagnosis request.
func buildAnalysisPrompt(task *models.Task, attempts []models.FailureAttempt) string {
	var sb strings.Builder
	sb.WriteString("Analyze the repeated failures of an automated build task and produce a root-cause diagnosis.\n\n")
	fmt.Fprintf(&sb, "Task: %s\n", task.Title)
	fmt.Fprintf(&sb, "Agent: %s\n", task.Agent)
	fmt.Fprintf(&sb, "Complexity: %s, estimated size %d units\n", task.Complexity, task.EstimatedSize)
	fmt.Fprintf(&sb, "Description:\n%s\n\n", task.Description)

	fmt.Fprintf(&sb, "Failure attempts (%d):\n", len(attempts))
	for _, attempt := range attempts {
		fmt.Fprintf(&sb, "--- Attempt %d ---\n", attempt.Iteration)
		fmt.Fprintf(&sb, "Error: %s\n", attempt.ErrorText)
		if attempt.Stdout != "" {
			fmt.Fprintf(&sb, "Stdout: %s\n", truncate(attempt.Stdout, streamTruncateLen))
		}
		if attempt.Stderr != "" {
			fmt.Fprintf(&sb, "Stderr: %s\n", truncate(attempt.Stderr, streamTruncateLen))
		}
		if len(attempt.FilesTouched) > 0 {
			fmt.Fprintf(&sb, "Files touched: %s\n", strings.Join(attempt.FilesTouched, ", "))
		}
	}

	sb.WriteString("\nCategories: syntax (code-level syntax/compile errors), logic (wrong behavior, failing assertions), ")
	sb.WriteString("dependency (missing/incompatible packages), environment (tooling, permissions, resources), ")
	sb.WriteString("complexity (task scope too large for one attempt), unknown.\n")
	sb.WriteString("\nRespond with ONLY a JSON object matching this schema:\n")
	sb.WriteString(models.ErrorAnalysisSchema())
	return sb.String()
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

// lastErrorText returns the most recent attempt's error text for the
// fallback diagnosis.
func lastErrorText(attempts []models.FailureAttempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].ErrorText
}
