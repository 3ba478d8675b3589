// Package agent turns task definitions into executed work by prompting the
// content generator with an agent-specific persona.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/genai"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/scheduler"
)

// personas maps agent categories to role framing for the generator.
var personas = map[string]string{
	"backend":  "You are a senior backend engineer.",
	"frontend": "You are a senior frontend engineer.",
	"testing":  "You are a test engineer focused on coverage and edge cases.",
	"devops":   "You are an infrastructure engineer.",
	"general":  "You are a senior software engineer.",
}

// Logger is the logging surface the runner needs.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// GeneratorRunner executes a task as one generation round trip. The output
// payload is whatever the generator produced; an empty response counts as a
// failed attempt, not an error.
type GeneratorRunner struct {
	gen    genai.Generator
	logger Logger
}

// NewGeneratorRunner creates a GeneratorRunner. logger may be nil.
func NewGeneratorRunner(gen genai.Generator, logger Logger) *GeneratorRunner {
	return &GeneratorRunner{gen: gen, logger: logger}
}

// Run performs one attempt of the task.
func (r *GeneratorRunner) Run(ctx context.Context, task *models.Task, iteration int) (*scheduler.RunResult, error) {
	prompt := buildTaskPrompt(task, iteration)
	if r.logger != nil {
		r.logger.Debugf("task %s iteration %d: prompting agent %q", task.ID, iteration, task.Agent)
	}

	output, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return &scheduler.RunResult{ErrorText: fmt.Sprintf("generation failed: %v", err)}, nil
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return &scheduler.RunResult{ErrorText: "generator returned empty output"}, nil
	}
	return &scheduler.RunResult{Success: true, Output: output}, nil
}

func buildTaskPrompt(task *models.Task, iteration int) string {
	persona, ok := personas[task.Agent]
	if !ok {
		persona = personas["general"]
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Task: %s\n\n%s\n", task.Title, task.Prompt())
	if iteration > 1 && task.ErrorText != "" {
		fmt.Fprintf(&sb, "\nThe previous attempt failed with: %s\nProduce a corrected result.\n", task.ErrorText)
	}
	return sb.String()
}
