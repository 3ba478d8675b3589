package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func testTask() *models.Task {
	return &models.Task{
		ID:          "t-1",
		Agent:       "backend",
		Title:       "Build login endpoint",
		Description: "Implement POST /login",
		ErrorText:   "previous: handler panicked",
	}
}

func TestRunSuccess(t *testing.T) {
	gen := &fakeGenerator{response: "  endpoint implementation  "}
	result, err := NewGeneratorRunner(gen, nil).Run(context.Background(), testTask(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Output != "endpoint implementation" {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(gen.prompt, "senior backend engineer") {
		t.Errorf("persona missing from prompt: %q", gen.prompt)
	}
	if strings.Contains(gen.prompt, "previous attempt failed") {
		t.Error("first iteration must not carry failure context")
	}
}

func TestRunRetryCarriesFailureContext(t *testing.T) {
	gen := &fakeGenerator{response: "fixed"}
	if _, err := NewGeneratorRunner(gen, nil).Run(context.Background(), testTask(), 2); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.prompt, "handler panicked") {
		t.Errorf("retry prompt must name the previous failure: %q", gen.prompt)
	}
}

func TestRunFailuresAreResultsNotErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want string
	}{
		{"generation error", &fakeGenerator{err: errors.New("rate limited")}, "generation failed"},
		{"empty output", &fakeGenerator{response: "   "}, "empty output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewGeneratorRunner(tt.gen, nil).Run(context.Background(), testTask(), 1)
			if err != nil {
				t.Fatalf("attempt failures must not surface as errors: %v", err)
			}
			if result.Success || !strings.Contains(result.ErrorText, tt.want) {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

func TestUnknownAgentFallsBackToGeneralPersona(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	task := testTask()
	task.Agent = "astrologer"
	if _, err := NewGeneratorRunner(gen, nil).Run(context.Background(), task, 1); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.prompt, "senior software engineer") {
		t.Errorf("prompt = %q", gen.prompt)
	}
}
